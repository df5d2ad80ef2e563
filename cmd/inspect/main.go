package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/store"
)

// inspect dumps raw store keys for debugging a LabVerse database offline,
// and can write a single raw key for repair work.
func main() {
	var dbPath string
	var prefix string
	var values bool
	var pretty bool
	var setKV string
	flag.StringVar(&dbPath, "db", "", "pebble db path to open")
	flag.StringVar(&prefix, "prefix", "", "key prefix filter (e.g. session:, doc:, vec:)")
	flag.BoolVar(&values, "values", false, "print values alongside keys")
	flag.BoolVar(&pretty, "pretty", false, "indent JSON values (implies -values)")
	flag.StringVar(&setKV, "set", "", "write a raw key as key=value, then exit")
	flag.Parse()

	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}
	logger.Init()

	if err := store.Open(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer store.Close()

	if setKV != "" {
		k, v, ok := strings.Cut(setKV, "=")
		if !ok || k == "" {
			fmt.Fprintln(os.Stderr, "--set wants key=value")
			os.Exit(2)
		}
		if err := store.DBSet([]byte(k), []byte(v)); err != nil {
			fmt.Fprintf(os.Stderr, "set %s: %v\n", k, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "set %s (%d bytes)\n", k, len(v))
		return
	}

	if !values && !pretty {
		keys, err := store.ListKeys(prefix)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list keys: %v\n", err)
			os.Exit(1)
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		fmt.Fprintf(os.Stderr, "%d keys\n", len(keys))
		return
	}

	it, err := store.DBIter()
	if err != nil {
		fmt.Fprintf(os.Stderr, "iterator: %v\n", err)
		os.Exit(1)
	}
	defer it.Close()

	n := 0
	for valid := it.First(); valid; valid = it.Next() {
		k := string(it.Key())
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		n++
		v := it.Value()
		if pretty && store.LikelyJSON(v) {
			var buf bytes.Buffer
			if json.Indent(&buf, v, "", "  ") == nil {
				fmt.Printf("%s\n%s\n", k, buf.String())
				continue
			}
		}
		fmt.Printf("%s\t%s\n", k, v)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", n)
}
