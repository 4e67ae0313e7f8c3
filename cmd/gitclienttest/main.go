// Command gitclienttest is a manual test utility for git-hosted snapshot
// archives. It lists the references of a repository and the snapshots
// found at one of them.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jhaugan/catsync/internal/gitclient"
	"github.com/jhaugan/catsync/internal/snapshot"
)

func main() {
	var (
		url      string
		username string
		password string
		ref      string
	)

	flag.StringVar(&url, "url", "", "Repository URL to list")
	flag.StringVar(&username, "user", "", "Username for authentication")
	flag.StringVar(&password, "pass", "", "Password or Token for authentication")
	flag.StringVar(&ref, "ref", "", "Reference (branch or tag) to list snapshots from. Defaults to the default branch.")
	flag.Parse()

	if url == "" {
		fmt.Println("Error: -url is required")
		flag.Usage()
		os.Exit(1)
	}

	var auth *gitclient.Auth
	if username != "" || password != "" {
		auth = &gitclient.Auth{
			Username: username,
			Password: password,
		}
	}

	loader, err := gitclient.New(url, auth)
	if err != nil {
		log.Fatalf("Failed to create loader for %q: %v", url, err)
	}

	// List branches and tags
	refs, err := loader.ListReferences()
	if err != nil {
		log.Fatalf("Failed to list references: %v", err)
	}
	if len(refs) == 0 {
		log.Fatalf("No branches or tags found in %q", url)
	}

	fmt.Printf("Branches and tags in %s:\n", url)
	for _, v := range refs {
		fmt.Printf("  %s\n", v)
	}

	// List snapshots for the specified revision
	src, err := snapshot.NewGitSource(loader, ref)
	if err != nil {
		log.Fatalf("Failed to open revision %q: %v", ref, err)
	}
	infos, err := snapshot.List(src)
	if err != nil {
		log.Fatalf("Failed to list snapshots at revision %q: %v", src.Ref(), err)
	}

	fmt.Printf("\nSnapshots at revision %q:\n", src.Ref())
	if len(infos) == 0 {
		fmt.Println("  (none)")
	}
	for _, in := range infos {
		fmt.Printf("  %s  %-6s  %s\n", in.Date.Format("2006-01-02"), in.Kind, in.Path)
	}
}
