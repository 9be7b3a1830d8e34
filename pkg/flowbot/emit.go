package flowbot

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/template"
)

// mainTemplate is the scaffold of an emitted program: a fixed interpreter
// harness around an embedded node table. The table is the only part that
// varies with the graph, so emitted source stays linear in graph size.
var mainTemplate = template.Must(template.New("main").Parse(`// Code generated by flowbot export. DO NOT EDIT.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/flowbot-dev/flowbot/pkg/flowbot"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/sim"
)

// programJSON is the compiled node table for {{.Name}}.
const programJSON = {{.ProgramJSON}}

func main() {
	prog, err := flowbot.LoadProgram([]byte(programJSON))
	if err != nil {
		slog.Error("load program", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := sim.RunConsole(context.Background(), prog); err != nil {
		slog.Error("run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
`))

// EmitSource writes a standalone Go program that embeds the compiled node
// table and drives the generic interpreter over stdin/stdout.
func EmitSource(w io.Writer, p *Program) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("emit: %w", err)
	}
	name := p.Settings.BotName
	if name == "" {
		name = "exported bot"
	}
	return mainTemplate.Execute(w, struct {
		Name        string
		ProgramJSON string
	}{
		Name:        name,
		ProgramJSON: strconv.Quote(string(data)),
	})
}
