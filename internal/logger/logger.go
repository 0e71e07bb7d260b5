// Package logger provides prefixed, asynchronous logging so that hot paths
// (websocket pumps, notification fan-out) never block on log I/O.
// Duration logging for slow calls is built in.
package logger

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

const asyncBufferSize = 8192

var (
	prefix   string
	logLevel = levelInfo
	ch       chan string
	once     sync.Once
)

type level int

const (
	levelDebug level = iota
	levelInfo
)

func initLevel() {
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "trace":
		logLevel = levelDebug
	default:
		logLevel = levelInfo
	}
}

func initWorker() {
	initLevel()
	ch = make(chan string, asyncBufferSize)
	go func() {
		for msg := range ch {
			log.Print(msg)
		}
	}()
}

func enqueue(msg string) {
	once.Do(initWorker)
	select {
	case ch <- msg:
	default:
		// Buffer full: drop the line rather than block the caller.
	}
}

// SetPrefix sets the tag prepended to every line (e.g. "hub", "portal").
func SetPrefix(p string) {
	prefix = p
}

func tag() string {
	if prefix == "" {
		return ""
	}
	return "[" + prefix + "] "
}

// Info logs at info level (asynchronously).
func Info(v ...any) {
	enqueue(tag() + fmt.Sprint(v...))
}

// Infof logs a formatted line at info level (asynchronously).
func Infof(format string, v ...any) {
	enqueue(tag() + fmt.Sprintf(format, v...))
}

// Error logs an error line (asynchronously).
func Error(v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprint(v...))
}

// Errorf logs a formatted error line (asynchronously).
func Errorf(format string, v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprintf(format, v...))
}

// LogDuration logs the elapsed time of fn in milliseconds. At LOG_LEVEL=info
// only calls slower than 100ms are logged; at debug every call is.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	if logLevel == levelDebug || elapsed >= 100*time.Millisecond {
		enqueue(fmt.Sprintf("%sfn=%s duration_ms=%d", tag(), fn, elapsed.Milliseconds()))
	}
}

// DeferLogDuration is meant for defer: defer logger.DeferLogDuration("Name", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}
