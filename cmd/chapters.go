package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/chapter-crawler/internal/discovery"
)

func newChaptersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapters <book-id|catalog-url>...",
		Short: "Download every chapter of one or more books",
		Long: `Fetches each book's catalog, then every chapter in catalog order. A completed
book is written as <book-id>.txt under the configured output. With the default
fail_fast policy the first chapter that exhausts its retries aborts the book
and nothing is written for it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.runChapters,
	}
	flags := cmd.Flags()
	flags.String("failure-policy", "", "fail_fast or skip")
	flags.Int("max-attempts", 0, "fetch attempts per chapter")
	flags.Duration("retry-delay", 0, "pause between attempts")
	flags.Int("batch-size", 0, "chapters between cooldowns (0 disables)")
	flags.Duration("batch-cooldown", 0, "cooldown length")
	c.bind("crawler.failure_policy", flags.Lookup("failure-policy"))
	c.bind("crawler.max_attempts", flags.Lookup("max-attempts"))
	c.bind("crawler.retry_delay", flags.Lookup("retry-delay"))
	c.bind("crawler.batch_size", flags.Lookup("batch-size"))
	c.bind("crawler.batch_cooldown", flags.Lookup("batch-cooldown"))
	return cmd
}

func (c *cli) runChapters(cmd *cobra.Command, args []string) error {
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		id, err := discovery.ResolveBookID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	out := cmd.OutOrStdout()
	for _, id := range ids {
		result, record, err := c.app.DownloadBook(cmd.Context(), id)
		if err != nil {
			c.logger.Error("book failed",
				zap.String("book_id", id),
				zap.String("status", string(result.Status)),
				zap.Error(err),
			)
			return fmt.Errorf("book %s: %w", id, err)
		}
		fmt.Fprintf(out, "%s\t%s\t%d chapters\t%d skipped\t%s\n",
			id, result.Status, len(result.Chapters), len(result.Skipped), record.BlobURI)
	}
	return nil
}
