package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/zeusync/scenegraph/internal/core/engine"
	"github.com/zeusync/scenegraph/internal/core/replication"
	"github.com/zeusync/scenegraph/internal/core/resource"
	"github.com/zeusync/scenegraph/internal/core/scene"
)

// loadContext builds an engine context from -config, defaulting the resource
// search path to the scene file's directory so relative refs resolve.
func loadContext(configPath, scenePath string) (*engine.Context, error) {
	cfg := engine.DefaultConfig()
	if configPath != "" {
		loaded, err := engine.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if scenePath != "" {
		cfg.ResourceDirs = []string{filepath.Dir(scenePath)}
	}
	return engine.NewContext(cfg)
}

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	in := fs.String("in", "", "scene file (.bin/.xml/.json)")
	config := fs.String("config", "", "engine config file")
	_ = fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("info: -in is required")
	}

	ctx, err := loadContext(*config, *in)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.Close() }()

	s := ctx.NewScene()
	if err := s.LoadFile(*in); err != nil {
		return err
	}

	fmt.Printf("file:       %s\n", s.FileName())
	fmt.Printf("nodes:      %d\n", s.NumNodes())
	fmt.Printf("components: %d\n", s.NumComponents())
	if s.Checksum() != 0 {
		fmt.Printf("checksum:   %016x\n", s.Checksum())
	}

	types := map[string]int{}
	countComponents(&s.Node, types)
	for name, count := range types {
		fmt.Printf("  %-24s %d\n", name, count)
	}
	return nil
}

func countComponents(n *scene.Node, types map[string]int) {
	for _, comp := range n.Components() {
		types[comp.TypeName()]++
	}
	for _, child := range n.Children() {
		countComponents(child, types)
	}
}

func cmdConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	in := fs.String("in", "", "input scene file")
	out := fs.String("out", "", "output scene file; format by extension")
	config := fs.String("config", "", "engine config file")
	_ = fs.Parse(args)
	if *in == "" || *out == "" {
		return fmt.Errorf("convert: -in and -out are required")
	}

	ctx, err := loadContext(*config, *in)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.Close() }()

	s := ctx.NewScene()
	if err := s.LoadFile(*in); err != nil {
		return err
	}
	if err := s.SaveFile(*out); err != nil {
		return err
	}
	fmt.Printf("converted %s -> %s (%d nodes, %d components)\n",
		*in, *out, s.NumNodes(), s.NumComponents())
	return nil
}

func cmdPatch(args []string) error {
	fs := flag.NewFlagSet("patch", flag.ExitOnError)
	in := fs.String("in", "", "XML scene file to patch")
	patch := fs.String("patch", "", "XML patch file (add/replace/remove ops)")
	out := fs.String("out", "", "output file; defaults to -in")
	config := fs.String("config", "", "engine config file")
	_ = fs.Parse(args)
	if *in == "" || *patch == "" {
		return fmt.Errorf("patch: -in and -patch are required")
	}
	if *out == "" {
		*out = *in
	}

	ctx, err := loadContext(*config, *in)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.Close() }()

	target, err := loadXMLFile(ctx.Cache, *in)
	if err != nil {
		return err
	}
	patchFile, err := loadXMLFile(ctx.Cache, *patch)
	if err != nil {
		return err
	}
	if err := target.Patch(patchFile); err != nil {
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := target.Save(f); err != nil {
		return err
	}
	fmt.Printf("patched %s -> %s\n", *in, *out)
	return nil
}

func loadXMLFile(cache *resource.Cache, path string) (*resource.XMLFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	x := resource.NewXMLFile()
	x.SetName(filepath.Base(path))
	if err := x.Load(data, cache); err != nil {
		return nil, err
	}
	return x, nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	in := fs.String("in", "", "scene file to serve; empty starts an empty scene")
	config := fs.String("config", "", "engine config file")
	transportName := fs.String("transport", "", "ws or quic; overrides config")
	addr := fs.String("addr", "", "listen address; overrides config")
	_ = fs.Parse(args)

	cfg := engine.DefaultConfig()
	if *config != "" {
		loaded, err := engine.LoadConfig(*config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *transportName != "" {
		cfg.Network.Transport = *transportName
	}
	if *addr != "" {
		cfg.Network.Address = *addr
	}
	if *in != "" && *config == "" {
		cfg.ResourceDirs = []string{filepath.Dir(*in)}
	}

	ctx, err := engine.NewContext(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.Close() }()

	s := ctx.NewScene()
	if cfg.AsyncLoadingMs > 0 {
		s.SetAsyncLoadingMs(cfg.AsyncLoadingMs)
	}
	if *in != "" {
		if err := s.LoadFile(*in); err != nil {
			return err
		}
	}

	transport, err := replication.NewTransport(cfg.Network.Transport)
	if err != nil {
		return err
	}
	srv := replication.NewServer(s, transport, ctx.Log)
	if err := srv.Start(context.Background(), cfg.Network.Address); err != nil {
		return err
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	interval := cfg.Network.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	dt := float32(interval.Seconds())

	for {
		select {
		case <-ticker.C:
			s.Update(dt)
			if err := srv.Tick(); err != nil {
				return err
			}
		case <-stopCh:
			return srv.Stop()
		}
	}
}

func cmdBenchLoad(args []string) error {
	fs := flag.NewFlagSet("bench-load", flag.ExitOnError)
	in := fs.String("in", "", "scene file to load")
	config := fs.String("config", "", "engine config file")
	budget := fs.Int("budget-ms", 5, "per-frame async loading budget")
	resources := fs.Bool("resources", false, "preload referenced resources too")
	_ = fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("bench-load: -in is required")
	}

	ctx, err := loadContext(*config, *in)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.Close() }()

	s := ctx.NewScene()
	s.SetAsyncLoadingMs(*budget)

	mode := scene.LoadScene
	if *resources {
		mode = scene.LoadSceneAndResources
		s.Cache().StartBackgroundLoader(context.Background(), 4)
	}

	start := time.Now()
	if err := s.LoadAsyncFile(*in, mode); err != nil {
		return err
	}

	frames := 0
	for s.IsAsyncLoading() {
		s.Update(1.0 / 60.0)
		frames++
		if frames%10 == 0 {
			fmt.Printf("\rprogress: %5.1f%%", s.AsyncProgress()*100)
		}
		time.Sleep(time.Millisecond)
	}
	fmt.Printf("\rprogress: 100.0%%\n")
	fmt.Printf("loaded %d nodes, %d components in %d frames (%s)\n",
		s.NumNodes(), s.NumComponents(), frames, time.Since(start).Round(time.Millisecond))
	return nil
}
