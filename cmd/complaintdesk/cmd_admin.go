package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"complaintdesk/core/appbootstrap"
	"complaintdesk/core/backups"
	"complaintdesk/core/routing"
	"complaintdesk/core/store"

	"github.com/spf13/cobra"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.NewDB(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := store.ApplyMigrations(cmd.Context(), db, c.logger); err != nil {
				return err
			}
			v, err := store.SchemaVersion(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which migrations are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.NewDB(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer db.Close()
			states, err := store.MigrationStatus(cmd.Context(), db)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
			for _, s := range states {
				fmt.Fprintf(tw, "%d\t%s\t%t\n", s.Version, s.Name, s.Applied)
			}
			return tw.Flush()
		},
	})
	return cmd
}

func (c *cli) peopleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "people",
		Short: "Inspect the directory",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List everyone in the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			people, err := appbootstrap.LoadDirectory(c.cfg)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tROLE\tNAME\tEMAIL\tCLASS\tDEPARTMENT")
			for _, p := range people.People() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Role, p.Name, p.Email, p.Class, p.Department)
			}
			return tw.Flush()
		},
	}, &cobra.Command{
		Use:   "chain <student-id>",
		Short: "Show the escalation path for complaints filed by a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			people, err := appbootstrap.LoadDirectory(c.cfg)
			if err != nil {
				return err
			}
			p, err := actor(people, args[0])
			if err != nil {
				return err
			}
			chain, chainErr := routing.NewResolver(people).Chain(p)
			for i, h := range chain {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s (%s, %s)\n", i+1, h.Name, h.ID, h.Role)
			}
			if chainErr != nil {
				if errors.Is(chainErr, routing.ErrNoHandlerFound) || errors.Is(chainErr, routing.ErrForwardNotAllowed) {
					fmt.Fprintf(cmd.OutOrStdout(), "chain stops: %v\n", chainErr)
					return nil
				}
				return chainErr
			}
			return nil
		},
	})
	return cmd
}

func (c *cli) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export and import complaint snapshots",
	}
	var as string
	importCmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Replace all stored complaints with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			m, err := rt.Backups.Import(cmd.Context(), args[0], as)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d complaints (snapshot of %s)\n", m.Count, m.CreatedAt.Format("2006-01-02 15:04:05Z07:00"))
			return nil
		},
	}
	importCmd.Flags().StringVar(&as, "as", "operator", "name recorded in the audit log")

	cmd.AddCommand(&cobra.Command{
		Use:   "export <path>",
		Short: "Write every complaint to a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			m, err := rt.Backups.Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d complaints to %s\n", m.Count, args[0])
			return nil
		},
	}, importCmd, &cobra.Command{
		Use:   "list",
		Short: "List scheduled snapshots in the backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := backups.NewService(c.cfg.Backups, nil, nil, c.logger)
			items, err := svc.List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tSHA256")
			for _, a := range items {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", a.Name, a.Size, a.SHA256)
			}
			return tw.Flush()
		},
	})
	return cmd
}
