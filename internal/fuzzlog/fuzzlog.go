// Copyright 2024 The sfuzz Authors
// This file is part of the sfuzz library.
//
// The sfuzz library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The sfuzz library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the sfuzz library. If not, see <http://www.gnu.org/licenses/>.

// Package fuzzlog is the structured logging entry point used by every
// sfuzz component. It wraps zap the way the rest of the corpus wraps its
// own loggers: one process-wide base logger, cheap per-component
// children via Sub, and contextual fields attached at the call site
// instead of baked into format strings.
package fuzzlog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.Mutex
	base *zap.SugaredLogger
)

func init() {
	base = newDefault()
}

func newDefault() *zap.SugaredLogger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "t"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(os.Stderr), zap.InfoLevel)
	return zap.New(core).Sugar()
}

// SetLevel raises or lowers the verbosity of every future Sub logger.
// It replaces the process-wide base logger; existing Sub loggers keep
// their snapshot (mirrors the teacher's root-logger-swap convention).
func SetLevel(level zapcore.Level) {
	mu.Lock()
	defer mu.Unlock()
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "t"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(os.Stderr), level)
	base = zap.New(core).Sugar()
}

// Sub returns a child logger tagged with "component", the way every
// sfuzz package names its own logs (scheduler, executor, oracle, ...).
func Sub(component string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return base.With("component", component)
}
