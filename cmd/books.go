package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/chapter-crawler/internal/discovery"
)

func newBooksCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Collect book IDs from listing pages into list_id.json",
		Long: `Walks the listing pages in the configured range and merges every book ID
found into list_id.json under the output root. Existing IDs are kept.`,
		Args: cobra.NoArgs,
		RunE: c.runBooks,
	}
	flags := cmd.Flags()
	flags.Int("start", 0, "first listing page")
	flags.Int("end", 0, "last listing page (inclusive)")
	flags.String("kind", "", "listing kind, e.g. class or full")
	flags.Int("class", 0, "listing class number")
	flags.Duration("page-delay", 0, "pause between listing pages")
	c.bind("listing.start_page", flags.Lookup("start"))
	c.bind("listing.end_page", flags.Lookup("end"))
	c.bind("listing.kind", flags.Lookup("kind"))
	c.bind("listing.class", flags.Lookup("class"))
	c.bind("listing.page_delay", flags.Lookup("page-delay"))
	return cmd
}

func (c *cli) runBooks(cmd *cobra.Command, _ []string) error {
	pages := discovery.PageRange{Start: c.cfg.Listing.StartPage, End: c.cfg.Listing.EndPage}
	if err := pages.Validate(); err != nil {
		return err
	}
	ids, uri, err := c.app.DiscoverBooks(cmd.Context(), pages)
	if err != nil {
		return fmt.Errorf("discover books: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d book ids in %s\n", len(ids), uri)
	return nil
}
