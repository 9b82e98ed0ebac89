package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/koustreak/askdb/internal/nl2sql"
	"github.com/koustreak/askdb/internal/query"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		conn    connectFlags
		execute bool
	)

	cmd := &cobra.Command{
		Use:   `ask "question"`,
		Short: "Translate a question into SQL, and optionally run it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.ask(cmd.Context(), &conn, strings.Join(args, " "), execute)
		},
	}
	conn.register(cmd)
	cmd.Flags().BoolVarP(&execute, "execute", "x", false, "run the generated statement and print the rows")
	return cmd
}

func (a *app) ask(ctx context.Context, conn *connectFlags, question string, execute bool) error {
	gen, err := nl2sql.NewGenerator(ctx, a.cfg.Generator())
	if err != nil {
		return err
	}

	m, h, err := a.open(ctx, conn)
	if err != nil {
		return err
	}
	defer m.Close()

	spinner, _ := pterm.DefaultSpinner.Start("Asking " + gen.Provider() + "...")
	tr, err := nl2sql.NewTranslator(gen, a.cfg.Database.IntrospectTimeout).Translate(ctx, h.DB, question)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Success("Generated with " + tr.Model)

	pterm.DefaultBox.
		WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("SQL")).
		Println(tr.SQL)

	if !execute {
		return nil
	}

	ex := &query.Executor{QueryTimeout: a.cfg.Database.QueryTimeout}
	res, err := ex.Execute(ctx, h.DB, tr.SQL)
	if err != nil {
		return err
	}
	return renderResult(res)
}

func renderResult(res *query.Result) error {
	if len(res.Rows) == 0 {
		pterm.Info.Println("No rows.")
		return nil
	}

	data := pterm.TableData{res.Headers}
	for _, row := range res.Rows {
		line := make([]string, len(res.Headers))
		for i, h := range res.Headers {
			line[i] = formatCell(row[h])
		}
		data = append(data, line)
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	table := "unknown"
	if res.Table != nil {
		table = *res.Table
	}
	pterm.Printfln("%d row(s) from %s", len(res.Rows), table)
	return nil
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}
