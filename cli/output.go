package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/jrsteele09/go-password-auth/oauth2"
)

func printSuccess(out io.Writer, msg string) {
	fmt.Fprintln(out, text.FgGreen.Sprint(msg))
}

func printError(out io.Writer, err error) {
	fmt.Fprintln(out, text.FgRed.Sprint(err.Error()))
}

func printUsers(out io.Writer, records []oauth2.UserRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, text.FgYellow.Sprint("No users found"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Username", "Password hash"})
	for i, r := range records {
		hash := r.PasswordHash
		if hash == "" {
			hash = text.FgHiBlack.Sprint("hidden")
		}
		t.AppendRow(table.Row{i + 1, r.UserName, hash})
	}
	t.AppendFooter(table.Row{"", "Total", len(records)})
	t.Render()
}
