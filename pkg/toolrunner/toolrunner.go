// Package toolrunner implements the tool-execution collaborator (spec
// §6): a shell-style runner that expands a ToolDefinition's command
// template against call arguments and runs it, in the teacher's own
// os/exec.CommandContext idiom (pkg/cli uses exec.Command throughout).
package toolrunner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/creack/pty"

	"github.com/makercode/maker/pkg/engine/config"
	"github.com/makercode/maker/pkg/engine/enginerr"
	"github.com/makercode/maker/pkg/logger"
)

var log = logger.New("toolrunner")

var templateVar = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Runner executes ToolDefinitions by templating their CommandTemplate
// against call arguments and running the result through /bin/sh -c,
// or through a pty when the definition is Interactive.
type Runner struct {
	// Shell is the interpreter used to run the expanded command. Defaults
	// to "/bin/sh" when empty.
	Shell string
}

// New returns a Runner with the default shell.
func New() *Runner {
	return &Runner{}
}

// Execute implements ports.ToolRunner (spec §4.8 tool-step flow, steps
// "Resolve the tool" through "Attach stdout to the step's log").
func (r *Runner) Execute(ctx context.Context, def config.ToolDefinition, arguments map[string]string, cwd, outputFile string) (string, error) {
	expanded := expandTemplate(def.CommandTemplate, arguments)
	if log.Enabled() {
		log.Printf("executing tool %s: %s (cwd=%s)", def.Name, expanded, cwd)
	}

	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", expanded)
	if cwd != "" {
		cmd.Dir = cwd
	}

	var stdout string
	var err error
	if def.Interactive {
		stdout, err = runInteractive(cmd)
	} else {
		stdout, err = runPiped(cmd)
	}
	if err != nil {
		return stdout, fmt.Errorf("%w: %s: %v", enginerr.ErrTool, def.Name, err)
	}

	if outputFile != "" {
		if writeErr := os.WriteFile(resolveOutputPath(cwd, outputFile), []byte(stdout), 0o644); writeErr != nil {
			return stdout, fmt.Errorf("%w: writing output file for %s: %v", enginerr.ErrTool, def.Name, writeErr)
		}
	}

	return stdout, nil
}

func runPiped(cmd *exec.Cmd) (string, error) {
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// runInteractive attaches the command to a pty (spec's Interactive tool
// flag, SPEC_FULL §6), for tools that refuse to run without one.
func runInteractive(cmd *exec.Cmd) (string, error) {
	f, err := pty.Start(cmd)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var out bytes.Buffer
	_, copyErr := out.ReadFrom(f)
	waitErr := cmd.Wait()
	if waitErr != nil {
		return out.String(), waitErr
	}
	if copyErr != nil {
		return out.String(), copyErr
	}
	return out.String(), nil
}

func resolveOutputPath(cwd, outputFile string) string {
	if cwd == "" || cwd == "." {
		return outputFile
	}
	if strings.HasPrefix(outputFile, "/") {
		return outputFile
	}
	return cwd + "/" + outputFile
}

// expandTemplate substitutes {{name}} placeholders with arguments[name],
// leaving unresolved placeholders untouched, so a missing argument reaches
// the shell as the literal {{name}} text rather than as an empty token.
func expandTemplate(template string, arguments map[string]string) string {
	return templateVar.ReplaceAllStringFunc(template, func(match string) string {
		name := templateVar.FindStringSubmatch(match)[1]
		if v, ok := arguments[name]; ok {
			return v
		}
		return match
	})
}
