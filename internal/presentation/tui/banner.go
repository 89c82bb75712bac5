package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the essayflow banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{"  ___                   ___ _", "#818cf8"},
		{" | __|______ __ _ _  _ | __| |_____ __ __", "#a78bfa"},
		{" | _|(_-<_-</ _` | || || _|| / _ \\ V  V /", "#c084fc"},
		{" |___/__/__/\\__,_|\\_, ||_| |_\\___/\\_/\\_/", "#e879f9"},
		{"                  |__/", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
