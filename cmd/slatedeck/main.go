/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"slatedeck/internal/backend"
	"slatedeck/internal/config"
	"slatedeck/internal/crash"
	"slatedeck/internal/domain"
	"slatedeck/internal/fdx"
	applog "slatedeck/internal/log"
	"slatedeck/internal/notify"
	"slatedeck/internal/paginate"
	"slatedeck/internal/reconcile"
	"slatedeck/internal/revision"
	"slatedeck/internal/storage"
	"slatedeck/internal/telemetry"
	"slatedeck/internal/version"
)

func usage() {
	fmt.Println("SlateDeck — script revision sync for production")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  slatedeck version|-v|--version           Show version")
	fmt.Println("  slatedeck init <dir> <name>              Create a new project at <dir> with name <name>")
	fmt.Println("  slatedeck open <dir>                     Open project at <dir> and print summary")
	fmt.Println("  slatedeck import <file.fdx>              Parse a script and print its scene strips")
	fmt.Println("  slatedeck send <dir> <file.fdx>          Publish a script revision to the project")
	fmt.Println("  slatedeck updates <dir> <module>         Check whether <module> has a revision to load")
	fmt.Println("  slatedeck load <dir> <module>            Reconcile the latest unloaded revision into <module>")
	fmt.Println("  slatedeck edit <dir> <scene-id>          Mark a scene record as locally edited")
	fmt.Println("  slatedeck log <dir> [limit]              Print the reconciliation history")
	fmt.Println("  slatedeck push <dir>                     Push the latest sent revision to the team-sync server")
	fmt.Println("  slatedeck remote                         List revisions on the team-sync server")
	fmt.Println("  slatedeck serve                          Run the team-sync server")
}

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var ph *storage.ProjectHandle
	defer func() { crash.Recover(ph) }()

	cfg, token, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	if cfg.General.TelemetryOptIn {
		telemetry.InitDefault()
	}

	args := os.Args
	if len(args) < 2 {
		usage()
		return
	}

	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("SlateDeck")
		fmt.Println(version.String())
		return
	case "init":
		if len(args) < 4 {
			fmt.Println("init requires <dir> and <name>")
			usage()
			os.Exit(2)
		}
		abs, _ := filepath.Abs(args[2])
		l.Info("init project", slog.String("root", abs), slog.String("name", args[3]))
		p := domain.Project{Name: args[3], Modules: domain.DefaultModules()}
		h, err := storage.InitProject(abs, p)
		if err != nil {
			fail(l, "init failed", err)
		}
		ph = h
		fmt.Println("Created project at", abs)
	case "open":
		if len(args) < 3 {
			fmt.Println("open requires <dir>")
			usage()
			os.Exit(2)
		}
		ph = mustOpen(l, args[2])
		fmt.Printf("Opened project: %s\n", ph.Project.Name)
		fmt.Printf("Modules: %v\n", ph.Project.Modules)
		fmt.Println("Root:", ph.Root)
	case "import":
		if len(args) < 3 {
			fmt.Println("import requires <file.fdx>")
			usage()
			os.Exit(2)
		}
		strips := paginate.StripsFromScenes(fdx.ParseFile(args[2]))
		printStrips(strips)
	case "send":
		if len(args) < 4 {
			fmt.Println("send requires <dir> and <file.fdx>")
			usage()
			os.Exit(2)
		}
		ph = mustOpen(l, args[2])
		runSend(l, ph, args[3])
	case "updates":
		if len(args) < 4 {
			fmt.Println("updates requires <dir> and <module>")
			usage()
			os.Exit(2)
		}
		ph = mustOpen(l, args[2])
		module := mustModule(args[3])
		st := mustStore(l, ph)
		defer closeStore(l, st)
		reg := revision.Open(context.Background(), storage.NewKVStore(st), notify.NewBus())
		if reg.HasUpdatesAvailable(module) {
			rev, _ := reg.LatestUnloaded(module)
			fmt.Printf("Update available for %s: %s (%s)\n", module, rev.RevisionID, rev.ColorName)
		} else {
			fmt.Printf("Module %s is up to date.\n", module)
		}
	case "load":
		if len(args) < 4 {
			fmt.Println("load requires <dir> and <module>")
			usage()
			os.Exit(2)
		}
		ph = mustOpen(l, args[2])
		runLoad(l, ph, mustModule(args[3]))
	case "edit":
		if len(args) < 4 {
			fmt.Println("edit requires <dir> and <scene-id>")
			usage()
			os.Exit(2)
		}
		ph = mustOpen(l, args[2])
		st := mustStore(l, ph)
		defer closeStore(l, st)
		if err := storage.NewSceneStore(st).MarkLocalEdit(context.Background(), args[3], time.Now()); err != nil {
			fail(l, "edit failed", err)
		}
		fmt.Println("Marked scene as locally edited:", args[3])
	case "log":
		if len(args) < 3 {
			fmt.Println("log requires <dir>")
			usage()
			os.Exit(2)
		}
		ph = mustOpen(l, args[2])
		limit := 0
		if len(args) > 3 {
			limit, _ = strconv.Atoi(args[3])
		}
		st := mustStore(l, ph)
		defer closeStore(l, st)
		entries, err := storage.NewSyncLog(st).List(context.Background(), limit)
		if err != nil {
			fail(l, "log failed", err)
		}
		printSyncLog(entries)
	case "push":
		if len(args) < 3 {
			fmt.Println("push requires <dir>")
			usage()
			os.Exit(2)
		}
		ph = mustOpen(l, args[2])
		runPush(l, ph, cfg, token)
	case "remote":
		cli := backend.NewClient(cfg.Backend.BaseURL, token, cfg.Backend.Timeout())
		list, err := cli.ListRevisions(context.Background())
		if err != nil {
			fail(l, "remote failed", err)
		}
		for _, rev := range list {
			fmt.Printf("%s  %-10s %4d scenes  %s  by %s\n",
				rev.SentDate.Local().Format("2006-01-02 15:04"), rev.ColorName,
				rev.SceneCount, rev.RevisionID, rev.PushedBy)
		}
	case "serve":
		if !cfg.General.EnableServer {
			fmt.Println("Team-sync server is disabled; set general.enable_server in the config file or SLATE_ENABLE_SERVER=1")
			os.Exit(2)
		}
		if err := backend.Start(); err != nil {
			fail(l, "serve failed", err)
		}
	default:
		usage()
	}
}

func runSend(l *slog.Logger, ph *storage.ProjectHandle, file string) {
	data, err := os.ReadFile(file)
	if err != nil {
		fail(l, "read script failed", err)
	}
	sum := sha256.Sum256(data)
	revID := hex.EncodeToString(sum[:])[:12]

	strips := paginate.StripsFromScenes(fdx.ParseFile(file))
	if len(strips) == 0 {
		fail(l, "send failed", fmt.Errorf("no scenes found in %s", file))
	}
	pages := strips[len(strips)-1].EndPage

	dst := ph.ScriptPath(revID)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		fail(l, "send failed", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		fail(l, "send failed", err)
	}

	st := mustStore(l, ph)
	defer closeStore(l, st)
	bus := notify.NewBus()
	reg := revision.Open(context.Background(), storage.NewKVStore(st), bus)
	sent, err := reg.Send(context.Background(), domain.SentRevision{
		RevisionID: revID,
		FileName:   filepath.Base(file),
		SceneCount: len(strips),
		PageCount:  pages,
	})
	if err != nil {
		fail(l, "send failed", err)
	}
	telemetry.Event("revision_sent", map[string]any{"scenes": sent.SceneCount})
	fmt.Printf("Sent revision %s (%s): %d scenes, %d pages\n",
		sent.RevisionID, sent.ColorName, sent.SceneCount, sent.PageCount)
}

func runLoad(l *slog.Logger, ph *storage.ProjectHandle, module domain.ConsumerModule) {
	st := mustStore(l, ph)
	defer closeStore(l, st)
	bus := notify.NewBus()
	reg := revision.Open(context.Background(), storage.NewKVStore(st), bus)
	engine := reconcile.NewEngine(storage.NewSceneStore(st), storage.ScriptLoader{Handle: ph}, reg, bus)
	engine.History = storage.NewSyncLog(st)

	revID, res, err := engine.LoadLatest(context.Background(), module)
	if err != nil {
		fail(l, "load failed", err)
	}
	telemetry.Event("revision_loaded", map[string]any{"module": string(module)})
	fmt.Printf("Loaded %s into %s: %d added, %d removed, %d modified, %d unchanged\n",
		revID, module, len(res.ScenesAdded), len(res.ScenesRemoved), len(res.ScenesModified), res.Unchanged)
	for _, c := range res.Conflicts {
		fmt.Printf("  conflict on scene %s: %s / %s\n", c.SceneNumber, c.LocalChange, c.IncomingChange)
	}
	if res.PreservedLocalEdits > 0 {
		fmt.Printf("  %d scene(s) kept their local edits\n", res.PreservedLocalEdits)
	}
}

func runPush(l *slog.Logger, ph *storage.ProjectHandle, cfg config.AppConfig, token string) {
	st := mustStore(l, ph)
	defer closeStore(l, st)
	reg := revision.Open(context.Background(), storage.NewKVStore(st), notify.NewBus())
	revs := reg.List()
	if len(revs) == 0 {
		fail(l, "push failed", fmt.Errorf("no sent revisions in project"))
	}
	cli := backend.NewClient(cfg.Backend.BaseURL, token, cfg.Backend.Timeout())
	out, err := cli.PushRevision(context.Background(), revs[0])
	if err != nil {
		fail(l, "push failed", err)
	}
	fmt.Printf("Pushed revision %s to %s\n", out.RevisionID, cfg.Backend.BaseURL)
}

func printStrips(strips []domain.SceneStrip) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSCENE\tI/E\tLOCATION\tD/N\tPAGES\tLENGTH")
	for _, s := range strips {
		num := s.SceneNumber
		if num == "" {
			num = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d-%d\t%s\n",
			s.Index, num, s.IntExt, s.Location, s.DayNight,
			s.StartPage, s.EndPage, domain.EighthsString(s.PageEighths))
	}
	_ = w.Flush()
}

func printSyncLog(entries []reconcile.SyncEntry) {
	if len(entries) == 0 {
		fmt.Println("No reconciliations recorded.")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  %-11s %s  +%d -%d ~%d !%d\n",
			e.At.Local().Format("2006-01-02 15:04"), e.Module, e.RevisionID,
			e.Added, e.Removed, e.Modified, e.Conflicts)
	}
}

func mustOpen(l *slog.Logger, dir string) *storage.ProjectHandle {
	abs, _ := filepath.Abs(dir)
	h, err := storage.Open(abs)
	if err != nil {
		fail(l, "open failed", err)
	}
	return h
}

func mustStore(l *slog.Logger, ph *storage.ProjectHandle) *storage.Store {
	st, err := storage.OpenStore(ph.Root)
	if err != nil {
		fail(l, "open store failed", err)
	}
	return st
}

func closeStore(l *slog.Logger, st *storage.Store) {
	if err := st.Close(); err != nil {
		l.Error("store close failed", slog.Any("err", err))
	}
}

func mustModule(s string) domain.ConsumerModule {
	m, ok := domain.ParseModule(s)
	if !ok {
		fmt.Printf("unknown module %q (expected scheduler, shots or breakdowns)\n", s)
		os.Exit(2)
	}
	return m
}

func fail(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}
