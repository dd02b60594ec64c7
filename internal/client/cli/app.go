// Package cli implements the filevault command-line client. Each invocation
// runs a single command against the server; the token pair is kept in a
// session file between invocations.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dmitrijs2005/filevault/internal/client/api"
	"github.com/dmitrijs2005/filevault/internal/client/config"
)

const sessionFileName = ".filevault-session.json"

type App struct {
	config *config.Config
	client *api.Client
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		client: api.NewClient(c.ServerAddr),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

func sessionFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return sessionFileName
	}
	return filepath.Join(home, sessionFileName)
}

func (a *App) loadSession() {
	data, err := os.ReadFile(sessionFilePath())
	if err != nil {
		return
	}
	var pair api.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return
	}
	a.client.SetTokens(&pair)
}

func (a *App) saveSession() error {
	pair := a.client.Tokens()
	if pair == nil {
		return os.Remove(sessionFilePath())
	}
	data, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	return os.WriteFile(sessionFilePath(), data, 0600)
}

// Run dispatches the command named by the first positional argument.
func (a *App) Run(ctx context.Context) error {
	if len(a.config.Args) == 0 {
		a.usage()
		return nil
	}

	a.loadSession()

	cmd, args := a.config.Args[0], a.config.Args[1:]

	var err error
	switch cmd {
	case "register":
		err = a.register(ctx)
	case "login":
		err = a.login(ctx)
	case "refresh":
		err = a.refresh(ctx)
	case "info":
		err = a.info(ctx)
	case "upload":
		err = a.upload(ctx, args)
	case "list":
		err = a.list(ctx, args)
	case "download":
		err = a.download(ctx, args)
	case "update":
		err = a.update(ctx, args)
	case "delete":
		err = a.delete(ctx, args)
	case "logout":
		err = a.logout(ctx)
	default:
		a.usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}

	if err != nil {
		return err
	}
	return a.saveSession()
}

func (a *App) usage() {
	fmt.Fprintln(a.out, "Usage: client [-a address] <command> [args]")
	fmt.Fprintln(a.out, "Commands:")
	fmt.Fprintln(a.out, "  register               create an account and sign in")
	fmt.Fprintln(a.out, "  login                  sign in")
	fmt.Fprintln(a.out, "  refresh                exchange the refresh token for a new pair")
	fmt.Fprintln(a.out, "  info                   show the authenticated user id")
	fmt.Fprintln(a.out, "  upload <path>          upload a file")
	fmt.Fprintln(a.out, "  list [page] [size]     list uploaded files")
	fmt.Fprintln(a.out, "  download <id> <path>   download a file")
	fmt.Fprintln(a.out, "  update <id> <path>     replace a file's contents")
	fmt.Fprintln(a.out, "  delete <id>            delete a file")
	fmt.Fprintln(a.out, "  logout                 revoke the current session")
}

func (a *App) credentials() (string, string, error) {
	id, err := GetSimpleText(a.reader, "Enter id (email or phone)", a.out)
	if err != nil {
		return "", "", err
	}
	pw, err := GetPassword(a.out)
	if err != nil {
		return "", "", err
	}
	return id, string(pw), nil
}

func (a *App) register(ctx context.Context) error {
	id, password, err := a.credentials()
	if err != nil {
		return err
	}
	if err := a.client.Signup(ctx, id, password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Registered and signed in")
	return nil
}

func (a *App) login(ctx context.Context) error {
	id, password, err := a.credentials()
	if err != nil {
		return err
	}
	if err := a.client.Signin(ctx, id, password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed in")
	return nil
}

func (a *App) refresh(ctx context.Context) error {
	if err := a.client.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Token pair refreshed")
	return nil
}

func (a *App) info(ctx context.Context) error {
	id, err := a.client.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func (a *App) upload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: upload <path>")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	rec, err := a.client.Upload(ctx, args[0], f)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Uploaded %s (id %s, %d bytes)\n", rec.Name, rec.ID, rec.Size)
	return nil
}

func (a *App) list(ctx context.Context, args []string) error {
	page, pageSize := 1, 10
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			page = v
		}
	}
	if len(args) > 1 {
		if v, err := strconv.Atoi(args[1]); err == nil {
			pageSize = v
		}
	}

	result, err := a.client.List(ctx, page, pageSize)
	if err != nil {
		return err
	}

	for _, item := range result.Items {
		fmt.Fprintf(a.out, "%s  %10d  %s  %s\n", item.ID, item.Size, item.UploadedAt.Format("2006-01-02 15:04"), item.Name)
	}
	fmt.Fprintf(a.out, "Page %d of %d (%d files)\n", result.Page, result.Pages, result.Total)
	return nil
}

func (a *App) download(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: download <id> <path>")
	}
	f, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	if err := a.client.Download(ctx, args[0], f); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved to %s\n", args[1])
	return nil
}

func (a *App) update(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: update <id> <path>")
	}
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	rec, err := a.client.Update(ctx, args[0], args[1], f)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s (%d bytes)\n", rec.Name, rec.Size)
	return nil
}

func (a *App) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <id>")
	}
	ok, err := a.client.Delete(ctx, args[0])
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(a.out, "Deleted")
	} else {
		fmt.Fprintln(a.out, "Nothing to delete")
	}
	return nil
}

func (a *App) logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}
