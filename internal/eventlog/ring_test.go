package eventlog_test

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-bridge/internal/eventlog"
)

func TestRingEvictsOldest(t *testing.T) {
	r := eventlog.NewRing(3)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(r, "line %d\n", i)
	}
	entries := r.Entries(zerolog.TraceLevel)
	if len(entries) != 3 || r.Len() != 3 {
		t.Fatalf("retained %d entries", len(entries))
	}
	if entries[0].Message != "line 2" || entries[2].Message != "line 4" {
		t.Errorf("entries = %+v", entries)
	}
	if r.Dropped() != 2 {
		t.Errorf("Dropped = %d", r.Dropped())
	}
	r.Clear()
	if r.Len() != 0 {
		t.Error("Clear left entries behind")
	}
}

func TestRingAsZerologSink(t *testing.T) {
	r := eventlog.NewRing(0)
	log := zerolog.New(r)
	log.Info().Str("method", "shader/list").Msg("request handled")
	log.Warn().Msg("slow handler")
	log.Error().Msg("handler failed")

	if got := len(r.Entries(zerolog.TraceLevel)); got != 3 {
		t.Fatalf("all: %d entries", got)
	}
	warn := r.Entries(eventlog.ParseSeverity("warning"))
	if len(warn) != 2 || warn[0].Message != "slow handler" {
		t.Errorf("warning+: %+v", warn)
	}
	errs := r.Entries(eventlog.ParseSeverity("error"))
	if len(errs) != 1 || errs[0].Level != zerolog.ErrorLevel {
		t.Errorf("error+: %+v", errs)
	}
	if errs[0].Raw == "" {
		t.Error("raw JSON line not retained")
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":      zerolog.TraceLevel,
		"all":   zerolog.TraceLevel,
		"info":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"ERROR": zerolog.ErrorLevel,
		"bogus": zerolog.TraceLevel,
	}
	for in, want := range cases {
		if got := eventlog.ParseSeverity(in); got != want {
			t.Errorf("ParseSeverity(%q) = %v, want %v", in, got, want)
		}
	}
}
