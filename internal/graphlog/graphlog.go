// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package graphlog is the structured-logging facade every other
// package logs through. It keeps the log/v3 call shape (Info/Warn/Error/
// Debug taking a message and alternating key-value pairs) while backing
// it with zap, the way upstream Erigon wires log/v3 over zap.
package graphlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the facade every package in this module logs through.
type Logger struct {
	z    *zap.SugaredLogger
	name string
}

// New builds a Logger writing human-readable output to stderr at the
// given level ("debug", "info", "warn", "error").
func New(name, level string) *Logger {
	lvl := zapcore.InfoLevel
	_ = lvl.UnmarshalText([]byte(level))

	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = "t"
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stderr), lvl)
	return &Logger{z: zap.New(core).Sugar(), name: name}
}

// Nop returns a Logger that discards everything, for tests.
func Nop() *Logger {
	return &Logger{z: zap.NewNop().Sugar(), name: "nop"}
}

// With returns a Logger that tags every subsequent record with the
// given sub-component name, e.g. log.With("replication.master").
func (l *Logger) With(name string) *Logger {
	return &Logger{z: l.z, name: name}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.z.Debugw(l.tag(msg), kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.z.Infow(l.tag(msg), kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.z.Warnw(l.tag(msg), kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.z.Errorw(l.tag(msg), kv...) }

// Epitaph is a distinct level for the fatal last-words record written by
// internal/epitaph before the process terminates; it is always emitted
// regardless of configured level.
func (l *Logger) Epitaph(msg string, kv ...interface{}) { l.z.Errorw("EPITAPH: "+l.tag(msg), kv...) }

func (l *Logger) tag(msg string) string {
	if l.name == "" {
		return msg
	}
	return "[" + l.name + "] " + msg
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.z.Sync() }
