package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/cadence/internal/model"
	"github.com/samcharles93/cadence/internal/safetensors"
	"github.com/samcharles93/cadence/internal/workspace"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("99")).Padding(0, 1)
)

func inspectCmd() *cli.Command {
	var (
		modelName string
		plain     bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Summarize the workspace or a single model",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "show details of one model",
				Destination: &modelName,
			},
			&cli.BoolFlag{
				Name:        "plain",
				Usage:       "disable styling",
				Destination: &plain,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ws, err := openWorkspace()
			if err != nil {
				return err
			}
			w := cmd.Root().Writer
			styled := !plain && isTerminal(os.Stdout) && w == io.Writer(os.Stdout)
			if modelName != "" {
				return inspectModel(w, ws, modelName, styled)
			}
			return inspectWorkspace(w, ws, styled, time.Now())
		},
	}
}

type renderer struct {
	styled bool
}

func (r renderer) title(s string) string {
	if !r.styled {
		return s
	}
	return titleStyle.Render(s)
}

func (r renderer) label(s string) string {
	s = fmt.Sprintf("%-16s", s)
	if !r.styled {
		return s
	}
	return labelStyle.Render(s)
}

func (r renderer) warn(s string) string {
	if !r.styled {
		return s
	}
	return warnStyle.Render(s)
}

func (r renderer) box(s string) string {
	if !r.styled {
		return s
	}
	return boxStyle.Render(s)
}

func inspectWorkspace(w io.Writer, ws *workspace.Workspace, styled bool, now time.Time) error {
	r := renderer{styled: styled}
	var b strings.Builder
	fmt.Fprintln(&b, r.title("workspace"))
	fmt.Fprintf(&b, "%s%s\n", r.label("root"), ws.Root)

	c, cerr := ws.Corpus()
	v, verr := ws.Vocabulary()
	switch {
	case errors.Is(cerr, workspace.ErrNotPreprocessed) || errors.Is(verr, workspace.ErrNotPreprocessed):
		fmt.Fprintf(&b, "%s%s\n", r.label("corpus"), r.warn("not preprocessed"))
	case cerr != nil:
		return cerr
	case verr != nil:
		return verr
	default:
		fmt.Fprintf(&b, "%s%s notes\n", r.label("corpus"), humanize.Comma(int64(c.Len())))
		fmt.Fprintf(&b, "%s%s tokens\n", r.label("vocabulary"), humanize.Comma(int64(v.Size())))
	}

	models, err := ws.ListModels()
	if err != nil {
		return err
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "%s (%d)\n", r.title("models"), len(models))
	for _, m := range models {
		kind := m.Kind
		if kind == "" {
			kind = safetensorsKind(m.Path)
		}
		fmt.Fprintf(&b, "  %-20s %-8s %10s  %s\n", m.Name, kind, humanize.Bytes(uint64(m.Size)), humanize.RelTime(m.ModTime, now, "ago", "from now"))
	}

	count, total, err := generatedStats(ws.GeneratedDir())
	if err != nil {
		return err
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "%s%d files, %s\n", r.label("generated"), count, humanize.Bytes(uint64(total)))

	_, err = fmt.Fprintln(w, r.box(strings.TrimRight(b.String(), "\n")))
	return err
}

func inspectModel(w io.Writer, ws *workspace.Workspace, name string, styled bool) error {
	r := renderer{styled: styled}
	path, err := ws.LocateModel(name)
	if err != nil {
		return err
	}
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	loaded, err := model.Load(path)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintln(&b, r.title(filepath.Base(path)))
	fmt.Fprintf(&b, "%s%s\n", r.label("kind"), loaded.Kind)
	fmt.Fprintf(&b, "%s%s\n", r.label("size"), humanize.Bytes(uint64(st.Size())))
	fmt.Fprintf(&b, "%s%d\n", r.label("vocabulary"), loaded.VocabSize())
	fmt.Fprintf(&b, "%s%d\n", r.label("context"), loaded.ContextLength())
	switch m := loaded.Predictor.(type) {
	case *model.Markov:
		fmt.Fprintf(&b, "%s%d\n", r.label("order"), m.Order)
		fmt.Fprintf(&b, "%s%v\n", r.label("alpha"), m.Alpha)
		fmt.Fprintf(&b, "%s%s\n", r.label("contexts"), humanize.Comma(int64(len(m.Counts))))
	case *model.Dense:
		fmt.Fprintf(&b, "%s%d\n", r.label("hidden"), m.Hidden())
	}
	if g, ok := loaded.Block.(*model.GAN); ok {
		fmt.Fprintf(&b, "%s%d\n", r.label("latent"), g.LatentDim())
	}
	if v, err := ws.Vocabulary(); err == nil && v.Size() != loaded.VocabSize() {
		fmt.Fprintf(&b, "%s\n", r.warn(fmt.Sprintf("vocabulary mismatch: workspace has %d tokens", v.Size())))
	}
	_, err = fmt.Fprintln(w, r.box(strings.TrimRight(b.String(), "\n")))
	return err
}

// safetensorsKind reads the kind from the header without loading weights.
func safetensorsKind(path string) model.Kind {
	f, err := safetensors.Open(path)
	if err != nil {
		return "?"
	}
	defer func() { _ = f.Close() }()
	kind, err := model.ParseKind(f.Metadata["kind"])
	if err != nil {
		return "?"
	}
	return kind
}

func generatedStats(dir string) (int, int64, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	var (
		count int
		total int64
	)
	for _, e := range ents {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".mid") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		count++
		total += info.Size()
	}
	return count, total, nil
}
