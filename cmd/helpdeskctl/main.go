package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk/internal/client"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
)

var (
	serverURL      string
	timeoutSeconds int
)

func main() {
	root := &cobra.Command{
		Use:           "helpdeskctl",
		Short:         "Command line client for the helpdesk ticket tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "", "tracker server base URL (defaults to HELPDESK_BASE_URL)")
	root.PersistentFlags().IntVar(&timeoutSeconds, "timeout", 0, "request timeout in seconds")

	root.AddCommand(listCmd(), getCmd(), createCmd(), setStatusCmd(), statsCmd(), watchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newClient() (client.Gateway, *client.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if serverURL != "" {
		cfg.Client.BaseURL = serverURL
	}
	if timeoutSeconds > 0 {
		cfg.Client.TimeoutSeconds = timeoutSeconds
	}

	logger, err := observability.NewLogger(config.LoggerConfig{Level: "warn"})
	if err != nil {
		return nil, nil, err
	}
	gateway := client.NewGateway(cfg.Client, logger)
	return gateway, client.NewStore(gateway, logger), nil
}

func listCmd() *cobra.Command {
	var statusFilter, search, sort string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets with optional filter, search and sort",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := newClient()
			if err != nil {
				return err
			}
			query := client.BuildListQuery(statusFilter, search, client.SortKey(sort))
			if err := store.Refresh(cmd.Context(), query); err != nil {
				return err
			}
			render(store.Snapshot())
			return nil
		},
	}
	cmd.Flags().StringVar(&statusFilter, "status", client.StatusFilterAll, "status filter (pending|accepted|resolved|rejected|all)")
	cmd.Flags().StringVar(&search, "search", "", "free text search")
	cmd.Flags().StringVar(&sort, "sort", string(client.SortUpdatedDesc), "sort key (updated_desc|updated_asc|created_desc|created_asc|title_asc|title_desc)")
	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid ticket id %q", args[0])
			}
			gateway, _, err := newClient()
			if err != nil {
				return err
			}
			ticket, err := gateway.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			fmt.Printf("ticket #%d [%s]\n", ticket.ID, ticket.Status)
			fmt.Printf("title: %s\n", ticket.Title)
			fmt.Printf("description: %s\n", ticket.Description)
			fmt.Printf("contact: %s", ticket.ContactEmail)
			if ticket.ContactPhone != nil {
				fmt.Printf(" / %s", *ticket.ContactPhone)
			}
			fmt.Printf("\ncreated: %s\nupdated: %s\n",
				ticket.CreatedAt.Format(time.RFC3339), ticket.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func createCmd() *cobra.Command {
	var title, description, email, phone string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if problems := localValidation(title, description, email); len(problems) > 0 {
				for field, message := range problems {
					fmt.Fprintf(os.Stderr, "%s: %s\n", field, message)
				}
				return fmt.Errorf("invalid input")
			}

			_, store, err := newClient()
			if err != nil {
				return err
			}
			input := domain.CreateTicketInput{
				Title:        title,
				Description:  description,
				ContactEmail: email,
			}
			if phone != "" {
				input.ContactPhone = &phone
			}
			ticket, err := store.Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Printf("created ticket #%d (%s)\n", ticket.ID, ticket.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "ticket title (min 3 characters)")
	cmd.Flags().StringVar(&description, "description", "", "problem description (min 10 characters)")
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().StringVar(&phone, "phone", "", "contact phone (optional)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func setStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-status ID STATUS",
		Short: "Transition a ticket to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid ticket id %q", args[0])
			}
			status := domain.TicketStatus(args[1])
			if !status.Valid() {
				return fmt.Errorf("invalid status %q (want pending|accepted|resolved|rejected)", args[1])
			}

			_, store, err := newClient()
			if err != nil {
				return err
			}
			ticket, err := store.UpdateStatus(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			fmt.Printf("ticket #%d is now %s\n", ticket.ID, ticket.Status)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate ticket counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := newClient()
			if err != nil {
				return err
			}
			if err := store.Refresh(cmd.Context(), client.ListQuery{Sort: client.SortUpdatedDesc}); err != nil {
				return err
			}
			snapshot := store.Snapshot()
			if snapshot.Stats == nil {
				return fmt.Errorf("no stats available")
			}
			s := snapshot.Stats
			fmt.Printf("total: %d\npending: %d\naccepted: %d\nresolved: %d\nrejected: %d\n",
				s.Total, s.Pending, s.Accepted, s.Resolved, s.Rejected)
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	var intervalSeconds int
	var statusFilter, search, sort string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Periodically refresh and render the ticket board",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := newClient()
			if err != nil {
				return err
			}
			query := client.BuildListQuery(statusFilter, search, client.SortKey(sort))
			if err := store.Refresh(cmd.Context(), query); err != nil {
				return err
			}
			render(store.Snapshot())

			if intervalSeconds <= 0 {
				intervalSeconds = 30
			}
			interval := time.Duration(intervalSeconds) * time.Second
			store.StartAutoRefresh(interval)
			defer store.StopAutoRefresh()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-sigCh:
					return nil
				case <-ticker.C:
					render(store.Snapshot())
				}
			}
		},
	}
	cmd.Flags().IntVar(&intervalSeconds, "interval", 30, "refresh interval in seconds")
	cmd.Flags().StringVar(&statusFilter, "status", client.StatusFilterAll, "status filter")
	cmd.Flags().StringVar(&search, "search", "", "free text search")
	cmd.Flags().StringVar(&sort, "sort", string(client.SortUpdatedDesc), "sort key")
	return cmd
}

func localValidation(title, description, email string) map[string]string {
	problems := map[string]string{}
	if !domain.ValidTitle(title) {
		problems["title"] = "must be at least 3 characters"
	}
	if !domain.ValidDescription(description) {
		problems["description"] = "must be at least 10 characters"
	}
	if !domain.ValidEmail(email) {
		problems["email"] = "must be a valid email address"
	}
	return problems
}

func render(snapshot client.Snapshot) {
	if snapshot.Err != "" {
		fmt.Fprintln(os.Stderr, "error:", snapshot.Err)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tUPDATED\tTITLE")
	for _, ticket := range snapshot.Tickets {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			ticket.ID, ticket.Status, ticket.UpdatedAt.Format(time.RFC3339), ticket.Title)
	}
	w.Flush()

	if snapshot.Stats != nil {
		s := snapshot.Stats
		fmt.Printf("\n%d tickets (%d pending, %d accepted, %d resolved, %d rejected)\n",
			s.Total, s.Pending, s.Accepted, s.Resolved, s.Rejected)
	}
}
