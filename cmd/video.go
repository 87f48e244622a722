package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/chapter-crawler/internal/video"
)

func newVideoCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "video <vid>",
		Short: "Query the download-info endpoint for a video",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runVideo,
	}
	flags := cmd.Flags()
	flags.String("endpoint", "", "download-info endpoint URL")
	flags.String("host", "", "video host, sent with the request")
	flags.String("quality", "", "requested quality")
	c.bind("video.endpoint", flags.Lookup("endpoint"))
	c.bind("video.host", flags.Lookup("host"))
	c.bind("video.quality", flags.Lookup("quality"))
	return cmd
}

func (c *cli) runVideo(cmd *cobra.Command, args []string) error {
	raw, err := c.app.VideoInfo(cmd.Context(), video.Request{
		Host:    c.cfg.Video.Host,
		VID:     args[0],
		Quality: c.cfg.Video.Quality,
	})
	if err != nil {
		return fmt.Errorf("video %s: %w", args[0], err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	buf.WriteByte('\n')
	_, err = cmd.OutOrStdout().Write(buf.Bytes())
	return err
}
