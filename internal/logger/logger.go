// Package logger - логирование с префиксом сервиса и асинхронной записью,
// чтобы не блокировать обработку запросов и рассылку снапшотов подписчикам.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

const asyncBufferSize = 8192

// slowThreshold - при уровне info LogDuration пишет только вызовы дольше этого порога.
const slowThreshold = 100 * time.Millisecond

var (
	prefix   string
	logLevel = levelInfo
	out      = log.New(os.Stderr, "", log.LstdFlags)
	ch       chan string
	once     sync.Once
	mu       sync.RWMutex
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelError
)

func parseLevel(s string) level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return levelDebug
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func initWorker() {
	mu.Lock()
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		logLevel = parseLevel(v)
	}
	mu.Unlock()
	ch = make(chan string, asyncBufferSize)
	go func() {
		for msg := range ch {
			mu.RLock()
			l := out
			mu.RUnlock()
			l.Print(msg)
		}
	}()
}

func enqueue(msg string) {
	once.Do(initWorker)
	select {
	case ch <- msg:
	default:
		// Буфер полон - не блокируем, теряем лог
	}
}

func enabled(l level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= logLevel
}

// SetPrefix задаёт префикс для всех последующих логов (например "api", "push").
func SetPrefix(p string) {
	mu.Lock()
	prefix = p
	mu.Unlock()
}

// SetLevel переопределяет уровень из конфигурации (LOG_LEVEL в env по-прежнему читается при старте).
func SetLevel(s string) {
	once.Do(initWorker)
	mu.Lock()
	logLevel = parseLevel(s)
	mu.Unlock()
}

// SetOutput перенаправляет вывод (терминальный клиент пишет лог в файл, а не поверх UI).
func SetOutput(w io.Writer) {
	mu.Lock()
	out = log.New(w, "", log.LstdFlags)
	mu.Unlock()
}

func tag() string {
	mu.RLock()
	p := prefix
	mu.RUnlock()
	if p == "" {
		return ""
	}
	return "[" + p + "] "
}

// Debugf пишет только при LOG_LEVEL=debug.
func Debugf(format string, v ...any) {
	if !enabled(levelDebug) {
		return
	}
	enqueue(tag() + "DEBUG: " + fmt.Sprintf(format, v...))
}

// Info пишет в log с префиксом (асинхронно).
func Info(v ...any) {
	if !enabled(levelInfo) {
		return
	}
	enqueue(tag() + fmt.Sprint(v...))
}

// Infof форматирует и пишет с префиксом (асинхронно).
func Infof(format string, v ...any) {
	if !enabled(levelInfo) {
		return
	}
	enqueue(tag() + fmt.Sprintf(format, v...))
}

// Error пишет ошибку с префиксом (асинхронно).
func Error(v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprint(v...))
}

// Errorf форматирует ошибку с префиксом (асинхронно).
func Errorf(format string, v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprintf(format, v...))
}

// LogDuration логирует имя функции и время выполнения в миллисекундах (асинхронно).
// При LOG_LEVEL=info логирует только медленные вызовы; при LOG_LEVEL=debug - все.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	if enabled(levelDebug) || (enabled(levelInfo) && elapsed >= slowThreshold) {
		enqueue(fmt.Sprintf("%sfn=%s duration_ms=%d", tag(), fn, elapsed.Milliseconds()))
	}
}

// DeferLogDuration возвращает функцию для вызова в defer: defer logger.DeferLogDuration("chat.Create", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}
