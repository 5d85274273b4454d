// Command debugsearch prints the raw hits a search provider returns for a
// song, before filtering and classification.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hyperifyio/golyrics/internal/search"
	"github.com/hyperifyio/golyrics/internal/settings"
	"github.com/hyperifyio/golyrics/internal/site"
)

func main() {
	base := os.Getenv("SEARX_URL")
	if base == "" {
		base = "http://localhost:8888"
	}
	q := site.Query{Artist: "Muse", Title: "Uprising"}
	if len(os.Args) > 2 {
		q = site.Query{Artist: os.Args[1], Title: os.Args[2]}
	}
	client := &http.Client{Timeout: 20 * time.Second}
	prov := &search.SearxNG{BaseURL: base, HTTPClient: client, UserAgent: "debugsearch/1.0"}
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()
	res, err := prov.Candidates(ctx, q, settings.Defaults())
	fmt.Println("err:", err)
	for i, r := range res {
		fmt.Printf("%d. %s - %s\n", i+1, r.Title, r.URL)
	}
}
