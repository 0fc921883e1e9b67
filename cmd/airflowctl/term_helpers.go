package main

import (
	"io"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/ui"
)

func isTerminalReader(r io.Reader) bool { return ui.IsTerminalReader(r) }

func isTerminalWriter(w io.Writer) bool { return ui.IsTerminalWriter(w) }
