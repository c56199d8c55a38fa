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

package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLogAlsoToFile(t *testing.T) {
	console := &bytes.Buffer{}
	old := logConsole
	logConsole = console
	defer func() { logConsole = old }()

	fileName := filepath.Join(t.TempDir(), "out.log")
	if err := LogAlsoToFile(fileName); err != nil {
		t.Fatalf("LogAlsoToFile: %v", err)
	}
	LogPrintf("%d: Filtering %s\n", 0, "4x4")
	LogSync()

	logMu.Lock()
	closeLogFile()
	logMu.Unlock()

	want := "0: Filtering 4x4\n"
	if console.String() != want {
		t.Errorf("console=%q; want %q", console.String(), want)
	}
	got, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != want {
		t.Errorf("file=%q; want %q", string(got), want)
	}
}
