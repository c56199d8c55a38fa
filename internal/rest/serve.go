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

// Package rest serves bilateral filter jobs over HTTP
package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"github.com/espdev/itkcvbf/internal"
	"github.com/espdev/itkcvbf/internal/device"
	"github.com/espdev/itkcvbf/internal/ops"
)

// Builds the router for the v1 API
func NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(internal.LogWriter()), gin.Recovery())
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.GET("/device", getDevice)
			v1.POST("/bilateral", postBilateral)
		}
	}
	return r
}

// Listens and serves the API on the given address until an error occurs
func Serve(addr string) error {
	internal.LogPrintf("Serving API on %s\n", addr)
	return NewRouter().Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

type deviceInfo struct {
	Accelerators []string        `json:"accelerators"`
	Disabled     bool            `json:"disabled"`
	Host         device.Features `json:"host"`
}

func getDevice(c *gin.Context) {
	info := deviceInfo{
		Accelerators: []string{},
		Disabled:     device.Disabled(),
		Host:         device.HostFeatures(),
	}
	for _, a := range device.Devices() {
		info.Accelerators = append(info.Accelerators, a.Name())
	}
	c.JSON(http.StatusOK, info)
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Runs the operator given in the request body, typically a sequence of load,
// bilateral and save steps. Streams the log as plain text. File names must be
// relative to the working directory of the server
func postBilateral(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	op, err := ops.UnmarshalOperator(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logWriter := c.Writer
	logWriter.Header().Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err := printArgs(logWriter, "Arguments:\n", "\n", op); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	ctx := ops.NewContext(logWriter)
	ctx.RestrictPaths = true
	ctx.MaxThreads = runtime.GOMAXPROCS(0)

	promises, err := op.MakePromises(nil, ctx)
	if err == nil {
		_, err = ops.MaterializeAll(promises, ctx.MaxThreads, true)
	}
	internal.ClearPools() // release filter buffers between requests
	if err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	} else {
		fmt.Fprintf(logWriter, "done\n")
	}
	logWriter.Flush()
}
