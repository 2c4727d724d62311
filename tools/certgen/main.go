// Package main generates a private CA and a server certificate for the
// reference document server, writing them under a certs directory. Point the
// server's -tls-cert/-tls-key at server.crt/server.key and the client's
// ca_file at ca.crt.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/atinyakov/mecsync/internal/certgen"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.String("hosts", "localhost,127.0.0.1", "comma-separated server host names and IPs")
	caName := fs.String("ca-name", "MEC System CA", "CA common name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ca, err := certgen.NewAuthority(*caName)
	if err != nil {
		return err
	}
	if err := ca.WriteServerSet(*dir, splitHosts(*hosts)...); err != nil {
		return err
	}
	fmt.Printf("✅ Certificates generated into %s\n", *dir)
	return nil
}

func splitHosts(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
