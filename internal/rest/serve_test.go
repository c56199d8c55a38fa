// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/espdev/itkcvbf/internal/convert"
	"github.com/espdev/itkcvbf/internal/device"
	"github.com/espdev/itkcvbf/internal/fits"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	NewRouter().ServeHTTP(rec, req)
	return rec
}

// Changes into a fresh temporary directory for the duration of the test
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestPing(t *testing.T) {
	rec := serve(t, http.MethodGet, "/api/v1/ping", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "pong") {
		t.Errorf("got %d %q; want 200 pong", rec.Code, rec.Body.String())
	}
}

func TestDevice(t *testing.T) {
	prev := device.Reset()
	defer device.Restore(prev)
	device.Register(device.NewVector(2))
	t.Setenv(device.EnvNoAccel, "")

	rec := serve(t, http.MethodGet, "/api/v1/device", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d; want 200", rec.Code)
	}
	var info deviceInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	if len(info.Accelerators) != 1 || info.Accelerators[0] != "vector/2" || info.Disabled {
		t.Errorf("got %+v; want one vector/2 accelerator", info)
	}
	if info.Host.LogicalCores != device.HostFeatures().LogicalCores {
		t.Errorf("host %+v does not match %+v", info.Host, device.HostFeatures())
	}

	t.Setenv(device.EnvNoAccel, "1")
	rec = serve(t, http.MethodGet, "/api/v1/device", "")
	info = deviceInfo{}
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	if len(info.Accelerators) != 0 || !info.Disabled {
		t.Errorf("got %+v; want no accelerators when disabled", info)
	}
}

func TestBilateral(t *testing.T) {
	dir := chdirTemp(t)
	f := fits.NewImageFromNaxisn([]int32{6, 5}, nil)
	f.Kind = convert.Int16
	for i := range f.Data {
		f.Data[i] = float32(i%6*100 - 250 + i%3)
	}
	if err := f.WriteFile(filepath.Join(dir, "in.fits")); err != nil {
		t.Fatal(err)
	}

	body := `{"type":"seq","active":true,"steps":[
		{"type":"load","fileName":"in.fits"},
		{"type":"bilateral","dimension":2,"params":{"rangeSigma":20,"domainSigma":2}},
		{"type":"save","filePattern":"out.fits"}]}`
	rec := serve(t, http.MethodPost, "/api/v1/bilateral", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d; want 200", rec.Code)
	}
	log := rec.Body.String()
	if !strings.HasSuffix(log, "done\n") || !strings.Contains(log, "0: Filtering 6x5 volume") {
		t.Errorf("log %q; want filtering and done", log)
	}
	g, err := fits.NewImageFromFile(filepath.Join(dir, "out.fits"), 0, &strings.Builder{})
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	if g.Kind != convert.Int16 || g.DimensionsToString() != "6x5" {
		t.Errorf("result %s %s; want int16 6x5", g.Kind, g.DimensionsToString())
	}
}

func TestBilateralRejectsOutsidePaths(t *testing.T) {
	chdirTemp(t)
	body := `{"type":"seq","active":true,"steps":[{"type":"load","fileName":"/etc/hosts"}]}`
	rec := serve(t, http.MethodPost, "/api/v1/bilateral", body)
	if !strings.Contains(rec.Body.String(), "error: filename outside current directory tree") {
		t.Errorf("log %q; want path error", rec.Body.String())
	}
}

func TestBilateralBadRequest(t *testing.T) {
	for _, body := range []string{`{"type":`, `{"type":"blur"}`} {
		rec := serve(t, http.MethodPost, "/api/v1/bilateral", body)
		if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "error") {
			t.Errorf("body %s: got %d %q; want 400 with error", body, rec.Code, rec.Body.String())
		}
	}
}
