package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"complaintdesk/core/complaints"

	"github.com/spf13/cobra"
)

func (c *cli) complaintsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "complaints",
		Aliases: []string{"c"},
		Short:   "Inspect and act on complaints",
	}
	cmd.AddCommand(
		c.complaintsListCmd(),
		c.complaintsShowCmd(),
		c.complaintsCreateCmd(),
		c.complaintsActionCmd("resolve", "Resolve a complaint you currently handle"),
		c.complaintsActionCmd("reject", "Reject a complaint you currently handle"),
		c.complaintsActionCmd("forward", "Forward a complaint to the next handler"),
		c.complaintsStatsCmd(),
		c.complaintsVerifyCmd(),
	)
	return cmd
}

func (c *cli) complaintsListCmd() *cobra.Command {
	var as, status, query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List complaints, optionally as seen by one person",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			items, err := rt.Complaints.List(cmd.Context())
			if err != nil {
				return err
			}
			if as != "" {
				p, err := actor(rt.Directory, as)
				if err != nil {
					return err
				}
				items = complaints.ViewFor(items, p)
			}
			items = complaints.FilterStatus(items, complaints.Status(status))
			items = complaints.Search(items, query)
			printComplaints(cmd.OutOrStdout(), items)
			return nil
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "person id whose view to show")
	cmd.Flags().StringVar(&status, "status", "", "only complaints in this status")
	cmd.Flags().StringVarP(&query, "query", "q", "", "search title and description")
	return cmd
}

func (c *cli) complaintsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one complaint with its log as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			item, err := rt.Complaints.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), item)
		},
	}
}

func (c *cli) complaintsCreateCmd() *cobra.Command {
	var as, title, description string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a new complaint as a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			p, err := actor(rt.Directory, as)
			if err != nil {
				return err
			}
			item, err := rt.Complaints.Create(cmd.Context(), p, title, description)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), item)
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "id of the filing student")
	cmd.Flags().StringVar(&title, "title", "", "complaint title")
	cmd.Flags().StringVar(&description, "description", "", "complaint description")
	return cmd
}

func (c *cli) complaintsActionCmd(action, short string) *cobra.Command {
	var as, note string
	cmd := &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			p, err := actor(rt.Directory, as)
			if err != nil {
				return err
			}
			var item *complaints.Complaint
			switch action {
			case "resolve":
				item, err = rt.Complaints.Resolve(cmd.Context(), p, args[0], note)
			case "reject":
				item, err = rt.Complaints.Reject(cmd.Context(), p, args[0], note)
			default:
				item, err = rt.Complaints.Forward(cmd.Context(), p, args[0], note)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), item)
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "id of the acting handler")
	cmd.Flags().StringVar(&note, "note", "", "note recorded with the action")
	return cmd
}

func (c *cli) complaintsStatsCmd() *cobra.Command {
	var as string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count complaints by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			items, err := rt.Complaints.List(cmd.Context())
			if err != nil {
				return err
			}
			if as != "" {
				p, err := actor(rt.Directory, as)
				if err != nil {
					return err
				}
				items = complaints.ViewFor(items, p)
			}
			s := complaints.Summarize(items)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "total\t%d\nopen\t%d\npending\t%d\nforwarded\t%d\nresolved\t%d\nrejected\t%d\n",
				s.Total, s.Open, s.Pending, s.Forwarded, s.Resolved, s.Rejected)
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "person id whose view to count")
	return cmd
}

// complaintsVerifyCmd replays every stored log and compares it with the stored fields.
func (c *cli) complaintsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every complaint matches its own log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			items, err := rt.Repo.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			bad := 0
			for i := range items {
				if err := complaints.Verify(&items[i]); err != nil {
					bad++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", items[i].ID, err)
				}
			}
			if bad > 0 {
				return fmt.Errorf("%d of %d complaints disagree with their log", bad, len(items))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d complaints verified\n", len(items))
			return nil
		},
	}
}

func printComplaints(w io.Writer, items []complaints.Complaint) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCREATED BY\tHANDLER\tTITLE")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Status, it.CreatedBy, it.CurrentHandler, it.Title)
	}
	_ = tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
