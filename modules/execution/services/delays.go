package services

import (
	"math/rand"
	"strings"
)

// baseDelaysMs are the nominal processing delays per message type.
var baseDelaysMs = map[string]int64{
	"rrcsetuprequest":    50,
	"rrcsetup":           100,
	"rrcsetupcomplete":   75,
	"rrcreconfiguration": 150,
	"measurementreport":  200,
	"handovercommand":    300,
	"handovercomplete":   250,
	"paging":             25,
	"servicerequest":     100,
	"attachrequest":      200,
	"attachaccept":       150,
	"attachcomplete":     100,
	"register":           100,
	"200ok":              50,
	"invite":             200,
	"100trying":          25,
	"180ringing":         30,
	"ack":                50,
	"bye":                100,
}

const defaultDelayMs = 100

func messageKey(message string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(message))
}

// BaseDelayMs returns the nominal delay of a message type.
func BaseDelayMs(message string) int64 {
	if d, ok := baseDelaysMs[messageKey(message)]; ok {
		return d
	}
	return defaultDelayMs
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSuffix(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = idAlphabet[r.Intn(len(idAlphabet))]
	}
	return string(b)
}
