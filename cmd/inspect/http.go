package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"dolworld.ai/internal/sim/world"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "dolsim base url")
	raw := fs.Bool("raw", false, "print the JSON response as is")
	_ = fs.Parse(args)

	v, body, err := fetchState(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/state")
	if err != nil {
		fmt.Fprintln(os.Stderr, "state:", err)
		os.Exit(1)
	}
	if *raw {
		fmt.Println(string(body))
		return
	}
	printState(os.Stdout, v)
}

func fetchState(url string) (world.StateView, []byte, error) {
	var v world.StateView
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(url)
	if err != nil {
		return v, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return v, nil, err
	}
	if resp.StatusCode/100 != 2 {
		return v, b, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, b, err
	}
	return v, b, nil
}

func printState(out io.Writer, v world.StateView) {
	fmt.Fprintf(out, "run %s at update %s, %d organisms\n", v.RunID, humanize.Comma(int64(v.Update)), len(v.Slots))
	fmt.Fprintln(out, "slot\torg\tparent\tage\tcells\tpool\tlocal\tenv\tscale\tbirth_tag")
	for _, s := range v.Slots {
		fmt.Fprintf(out, "%d\t%d\t%d\t%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
			s.Slot, s.OrgID, s.ParentID, v.Update-s.BirthUpdate, s.ActiveCells,
			s.Pool, s.LocalTotal, s.EnvTotal, s.LevelScale, s.BirthTag)
	}
}
