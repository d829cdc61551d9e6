package env

import (
	"encoding/base64"
	"math/rand/v2"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Func is a built-in placeholder function. It returns false when the
// arguments are unusable, which leaves the placeholder unresolved.
type Func func(args []string) (string, bool)

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

func defaultFuncs() map[string]Func {
	return map[string]Func{
		"now":          funcNow,
		"date":         funcDate,
		"timestamp":    funcTimestamp,
		"timestampMs":  funcTimestampMs,
		"uuid":         funcUUID,
		"random":       funcRandom,
		"randomString": funcRandomString,
		"base64":       funcBase64,
		"urlEncode":    funcURLEncode,
	}
}

// call evaluates expr if it has the form name(args)
func call(funcs map[string]Func, expr string) (string, bool) {
	matches := funcCallPattern.FindStringSubmatch(expr)
	if matches == nil {
		return "", false
	}

	fn, ok := funcs[matches[1]]
	if !ok {
		return "", false
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}
	return fn(args)
}

// parseArgs splits on commas outside single or double quotes
func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
			quoteChar = 0
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func funcNow(_ []string) (string, bool) {
	return time.Now().UTC().Format(time.RFC3339), true
}

func funcDate(args []string) (string, bool) {
	format := time.DateOnly
	if len(args) >= 1 {
		format = args[0]
	}
	return time.Now().UTC().Format(format), true
}

func funcTimestamp(_ []string) (string, bool) {
	return strconv.FormatInt(time.Now().Unix(), 10), true
}

func funcTimestampMs(_ []string) (string, bool) {
	return strconv.FormatInt(time.Now().UnixMilli(), 10), true
}

func funcUUID(_ []string) (string, bool) {
	return uuid.NewString(), true
}

func funcRandom(args []string) (string, bool) {
	lo, hi := 0, 100
	if len(args) >= 2 {
		var err error
		if lo, err = strconv.Atoi(args[0]); err != nil {
			return "", false
		}
		if hi, err = strconv.Atoi(args[1]); err != nil {
			return "", false
		}
	}
	if hi < lo {
		return "", false
	}
	return strconv.Itoa(rand.IntN(hi-lo+1) + lo), true
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func funcRandomString(args []string) (string, bool) {
	length := 16
	if len(args) >= 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return "", false
		}
		length = v
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = alphanumeric[rand.IntN(len(alphanumeric))]
	}
	return string(b), true
}

func funcBase64(args []string) (string, bool) {
	if len(args) < 1 {
		return "", false
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0])), true
}

func funcURLEncode(args []string) (string, bool) {
	if len(args) < 1 {
		return "", false
	}
	return url.QueryEscape(args[0]), true
}
