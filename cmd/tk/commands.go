package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/and161185/taskkeeper/internal/config"
	"github.com/and161185/taskkeeper/internal/errs"
	"github.com/and161185/taskkeeper/internal/importer"
	"github.com/and161185/taskkeeper/internal/model"
	"github.com/and161185/taskkeeper/internal/present"
)

func newRootCmd(ap **app) *cobra.Command {
	v := viper.New()
	var cfgPath string

	root := &cobra.Command{
		Use:           "tk",
		Short:         "Personal tasks for today, tomorrow and this week",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			cfg, err := config.Load(v, cfgPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			*ap = a
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
			cmd.SetContext(ctx)
			a.closers = append(a.closers, cancel)
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "config file (default "+config.DefaultPath()+")")
	pf.String("backend", "", "task backend: firestore or postgres")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	_ = v.BindPFlag("backend", pf.Lookup("backend"))
	_ = v.BindPFlag("log_level", pf.Lookup("log-level"))

	get := func() *app { return *ap }
	root.AddCommand(
		signupCmd(get), loginCmd(get), logoutCmd(get), whoamiCmd(get), refreshCmd(get),
		addCmd(get), listCmd(get), statusCmd(get), editCmd(get), rmCmd(get), importCmd(get),
		versionCmd(),
	)
	return root
}

// password returns the flag value or reads one line from stdin.
func password(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func signupCmd(get func() *app) *cobra.Command {
	var email, pw, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, err := get().auth()
			if err != nil {
				return err
			}
			p, err := password(cmd, pw)
			if err != nil {
				return err
			}
			cred, err := auth.SignUp(cmd.Context(), email, p, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed up as %s (%s)\n", cred.Email, cred.UserID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&pw, "password", "p", "", "password (read from stdin if empty)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	return cmd
}

func loginCmd(get func() *app) *cobra.Command {
	var email, pw string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, err := get().auth()
			if err != nil {
				return err
			}
			p, err := password(cmd, pw)
			if err != nil {
				return err
			}
			cred, err := auth.SignIn(cmd.Context(), email, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", displayName(cred))
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&pw, "password", "p", "", "password (read from stdin if empty)")
	return cmd
}

func logoutCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := get().localAuth().SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func whoamiCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess := get().localAuth().IsAuthenticated(cmd.Context())
			if !sess.Authenticated {
				return errs.ErrUnauthenticated
			}
			out := cmd.OutOrStdout()
			c := sess.Credential
			fmt.Fprintf(out, "user:    %s\n", displayName(c))
			fmt.Fprintf(out, "user id: %s\n", c.UserID)
			if !c.ExpiresAt.IsZero() {
				note := ""
				if sess.Expired {
					note = " (expired, run `tk refresh`)"
				}
				fmt.Fprintf(out, "token:   valid until %s%s\n", c.ExpiresAt.Local().Format(time.DateTime), note)
			}
			return nil
		},
	}
}

func refreshCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, err := get().auth()
			if err != nil {
				return err
			}
			if _, err := auth.Refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "token refreshed")
			return nil
		},
	}
}

func displayName(c model.Credential) string {
	if c.DisplayName != "" {
		return fmt.Sprintf("%s <%s>", c.DisplayName, c.Email)
	}
	return c.Email
}

func addCmd(get func() *app) *cobra.Command {
	var t model.Task
	var status, priority, when string
	cmd := &cobra.Command{
		Use:   "add <title>...",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := get().taskService(cmd.Context())
			if err != nil {
				return err
			}
			t.Title = strings.Join(args, " ")
			t.Status, t.Priority, t.When = model.Status(status), model.Priority(priority), model.When(when)
			added, err := svc.AddTask(cmd.Context(), t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", added.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&t.Description, "description", "d", "", "description")
	f.StringVarP(&priority, "priority", "p", "", "High, Mid or Low (default Mid)")
	f.StringVarP(&when, "when", "w", "", "Today, Tomorrow or \"This week\" (default Today)")
	f.StringVarP(&status, "status", "s", "", "\"Not Completed\", \"In Progress\" or Completed")
	f.StringVar(&t.ID, "id", "", "task id (generated if empty)")
	return cmd
}

func listCmd(get func() *app) *cobra.Command {
	var sortFlag, filterFlag string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks grouped by today, tomorrow and this week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sortKey, err := present.ParseSort(sortFlag)
			if err != nil {
				return errs.Validation("%v", err)
			}
			filter, err := present.ParseFilter(filterFlag)
			if err != nil {
				return errs.Validation("%v", err)
			}
			svc, err := get().taskService(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := svc.GetUserTasks(cmd.Context())
			if err != nil {
				return err
			}
			b := present.Apply(tasks, sortKey, filter)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(b)
			}
			printBuckets(cmd.OutOrStdout(), b)
			return nil
		},
	}
	cmd.Flags().StringVar(&sortFlag, "sort", "", "default, priority, status or composite")
	cmd.Flags().StringVar(&filterFlag, "filter", "", "all, high, mid, low, completed, inprogress or notcompleted")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printBuckets(w io.Writer, b present.Buckets) {
	section := func(name string, ts []model.Task) {
		fmt.Fprintf(w, "%s (%d)\n", name, len(ts))
		for _, t := range ts {
			fmt.Fprintf(w, "  %s  %-30s %-4s %s\n", t.ID, t.Title, t.Priority, t.Status)
			if t.Description != "" {
				fmt.Fprintf(w, "      %s\n", t.Description)
			}
		}
	}
	section("Today", b.Today)
	section("Tomorrow", b.Tomorrow)
	section("This week", b.ThisWeek)
}

func statusCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set the status of a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := get().taskService(cmd.Context())
			if err != nil {
				return err
			}
			st := model.Status(strings.Join(args[1:], " "))
			if err := svc.UpdateTask(cmd.Context(), args[0], model.TaskPatch{Status: &st}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "updated", args[0])
			return nil
		},
	}
}

func editCmd(get func() *app) *cobra.Command {
	var title, description, status, priority, when string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p model.TaskPatch
			f := cmd.Flags()
			if f.Changed("title") {
				p.Title = &title
			}
			if f.Changed("description") {
				p.Description = &description
			}
			if f.Changed("status") {
				s := model.Status(status)
				p.Status = &s
			}
			if f.Changed("priority") {
				pr := model.Priority(priority)
				p.Priority = &pr
			}
			if f.Changed("when") {
				w := model.When(when)
				p.When = &w
			}
			svc, err := get().taskService(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.UpdateTask(cmd.Context(), args[0], p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "updated", args[0])
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&title, "title", "t", "", "title")
	f.StringVarP(&description, "description", "d", "", "description")
	f.StringVarP(&status, "status", "s", "", "status")
	f.StringVarP(&priority, "priority", "p", "", "priority")
	f.StringVarP(&when, "when", "w", "", "when")
	return cmd
}

func rmCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := get().taskService(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.DeleteTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		},
	}
}

func importCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml|->",
		Short: "Add tasks from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			a := get()
			svc, err := a.taskService(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := importer.Import(cmd.Context(), svc, r, a.log)
			out := cmd.OutOrStdout()
			for _, fl := range rep.Failed {
				fmt.Fprintf(out, "skipped #%d %q: %s\n", fl.Index+1, fl.Title, errs.Message(fl.Err))
			}
			fmt.Fprintf(out, "imported %d task(s)\n", len(rep.Added))
			return err
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tk %s (%s)\n", version, buildDate)
		},
	}
}
