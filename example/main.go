package main

import (
	cowcache "CowCache"
	"CowCache/store"
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

func main() {
	name := flag.String("g", "example", "Group name")
	cacheType := flag.String("t", string(store.LRU), "Store type: lru, lru2, lrun, arc")
	maxBytes := flag.Int64("m", 1<<20, "Byte budget for the lru store")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	logrus.SetOutput(os.Stdout)
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	source := cowcache.GetterFunc(func(ctx context.Context, key string) ([]byte, error) {
		logrus.Infof("load %s from source", key)
		return fmt.Appendf(nil, "source value of %s", key), nil
	})

	opts := cowcache.DefaultGroupOptions
	opts.Cache.CacheType = store.CacheType(*cacheType)
	opts.Cache.MaxBytes = *maxBytes
	opts.Cache.Release = func(buf []byte) {
		logrus.Debugf("released %d bytes", len(buf))
	}

	group := cowcache.NewGroup(*name, source, opts)
	defer cowcache.DestroyAllGroups()

	logrus.Infof("group %s ready (%s store)", *name, *cacheType)

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch cmd, args := fields[0], fields[1:]; cmd {
		case "set":
			if len(args) < 2 {
				logrus.Warnf("usage: set <key> <value>")
				continue
			}
			if err := group.Set(ctx, args[0], []byte(args[1])); err != nil {
				logrus.Errorf("set %s %s error: %v", args[0], args[1], err)
			}
		case "get":
			if len(args) < 1 {
				logrus.Warnf("usage: get <key>")
				continue
			}
			val, err := group.Get(ctx, args[0])
			if err != nil {
				logrus.Errorf("get %s error: %v", args[0], err)
				continue
			}
			fmt.Printf("%s %s (%s)\n", args[0], val, val.Mode())
		case "text":
			if len(args) < 1 {
				logrus.Warnf("usage: text <key>")
				continue
			}
			val, err := group.GetText(ctx, args[0])
			if err != nil {
				logrus.Errorf("text %s error: %v", args[0], err)
				continue
			}
			fmt.Printf("%s %q\n", args[0], val)
		case "upper":
			// Copy on write: the cached bytes stay as they are.
			if len(args) < 1 {
				logrus.Warnf("usage: upper <key>")
				continue
			}
			val, err := group.Get(ctx, args[0])
			if err != nil {
				logrus.Errorf("upper %s error: %v", args[0], err)
				continue
			}
			buf := val.Mutable()
			for i, b := range buf {
				if 'a' <= b && b <= 'z' {
					buf[i] = b - 'a' + 'A'
				}
			}
			fmt.Printf("%s %s (%s)\n", args[0], val, val.Mode())
		case "del":
			if len(args) < 1 {
				logrus.Warnf("usage: del <key>")
				continue
			}
			if err := group.Delete(ctx, args[0]); err != nil {
				logrus.Errorf("del %s error: %v", args[0], err)
			}
		case "stats":
			fmt.Println(group.Stats())
		case "quit", "exit":
			return
		default:
			logrus.Warnf("unknown command %q", cmd)
		}
	}
}
