package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/log"
	"github.com/peterh/liner"

	"github.com/korri123/kScript/compiler"
)

const (
	appName     = "kscript"
	historyFile = ".kscript_history"
	prompt      = ">> "
)

var logger = &log.DefaultLogger

func main() {
	switch len(os.Args) {
	case 1:
		os.Exit(runRepl())
	case 2:
		os.Exit(runFile(os.Args[1]))
	default:
		fmt.Printf("usage: %s [script]\n", appName)
		os.Exit(2)
	}
}

// ---- FILE MODE ----

func runFile(path string) int {
	if err := compiler.RunFile(path); err != nil {
		// For compile and run failures the user-visible diagnostic
		// already went to stdout; a read failure is reported only here.
		logger.Error().Err(err).Str("script", path).Msg("script failed")
		return 1
	}
	return 0
}

// ---- REPL MODE ----

func runRepl() int {
	m := compiler.NewInteractive()

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		f, err := os.Create(histPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", histPath).Msg("could not save history")
			return
		}
		if _, err := ln.WriteHistory(f); err != nil {
			logger.Warn().Err(err).Msg("could not save history")
		}
		_ = f.Close()
	}()

	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return 0
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			logger.Error().Err(err).Msg("prompt failed")
			return 1
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == ":quit" {
			return 0
		}

		result, evalErr := m.EvalLine(line)
		if evalErr != nil {
			fmt.Println("Syntax error: " + evalErr.Error())
		} else {
			fmt.Println("Result >> " + result.String())
		}
		ln.AppendHistory(line)
	}
}
