// Command debugsearch runs a single search provider and prints the candidate
// URLs the pipeline would fetch, without fetching them.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/text/language"

	"github.com/hyperifyio/goscrape/internal/pipeline"
	"github.com/hyperifyio/goscrape/internal/search"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if err := newCLI(os.Stdout).Run(os.Args); err != nil {
		log.Error().Err(err).Msg("search failed")
		os.Exit(1)
	}
}

func newCLI(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "debugsearch",
		Usage:     "Print the candidate URLs a provider returns for a keyword",
		UsageText: "debugsearch [options] <keyword>",
		Writer:    out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "provider", Value: "searxng", Usage: "searxng, duckduckgo, google, rss or file"},
			&cli.StringFlag{Name: "searx.url", Value: "http://localhost:8888", EnvVars: []string{"SEARX_URL"}},
			&cli.StringFlag{Name: "google.key", EnvVars: []string{"GOOGLE_API_KEY"}},
			&cli.StringFlag{Name: "google.cx", EnvVars: []string{"GOOGLE_CX"}},
			&cli.StringFlag{Name: "rss.url", EnvVars: []string{"GOSCRAPE_RSS_URL"}},
			&cli.StringFlag{Name: "search.file", EnvVars: []string{"SEARCH_FILE"}},
			&cli.StringFlag{Name: "lang", Value: "zh"},
			&cli.IntFlag{Name: "n", Value: 6, Usage: "Number of candidates to request"},
		},
		Action: func(c *cli.Context) error {
			q := strings.Join(c.Args().Slice(), " ")
			if q == "" {
				q = "電磁學"
			}
			tag, err := language.Parse(c.String("lang"))
			if err != nil {
				return fmt.Errorf("lang: %w", err)
			}
			prov, err := providerFromFlags(c)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(c.Context, 25*time.Second)
			defer cancel()
			res, err := prov.Search(ctx, search.Request{
				Query:    pipeline.TruncateKeyword(q, pipeline.MaxKeywordRunes),
				Limit:    c.Int("n"),
				Language: tag,
				Unique:   true,
			})
			if err != nil {
				return err
			}
			printResults(c.App.Writer, res)
			return nil
		},
	}
}

func providerFromFlags(c *cli.Context) (search.Provider, error) {
	client := &http.Client{Timeout: 20 * time.Second}
	ua := "debugsearch/1.0"
	switch c.String("provider") {
	case "searxng":
		return &search.SearxNG{BaseURL: c.String("searx.url"), HTTPClient: client, UserAgent: ua}, nil
	case "duckduckgo":
		return &search.DuckDuckGo{HTTPClient: client, UserAgent: ua}, nil
	case "google":
		return &search.Google{APIKey: c.String("google.key"), CX: c.String("google.cx")}, nil
	case "rss":
		return &search.RSS{URLTemplate: c.String("rss.url"), HTTPClient: client, UserAgent: ua}, nil
	case "file":
		return &search.FileProvider{Path: c.String("search.file")}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", c.String("provider"))
	}
}

func printResults(w io.Writer, res []search.Result) {
	fmt.Fprintf(w, "%d results\n", len(res))
	for i, r := range res {
		fmt.Fprintf(w, "%d. [%s] %s - %s\n", i+1, r.Source, r.Title, r.URL)
	}
}
