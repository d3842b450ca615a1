package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/camden-git/mediacatalog/apperrors"
	"github.com/camden-git/mediacatalog/catalog"
	"github.com/camden-git/mediacatalog/config"
	"github.com/camden-git/mediacatalog/database"
	"github.com/camden-git/mediacatalog/gallery"
	"github.com/camden-git/mediacatalog/groups"
	"github.com/camden-git/mediacatalog/logger"
	"github.com/camden-git/mediacatalog/media"
	"github.com/camden-git/mediacatalog/realtime"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = `usage: mediacatalog <command> [args]

commands:
  scan <dir>                 add a directory and scan it
  list                       print the catalog with the saved sort and filters
  tags                       print every tag with its image count
  rate <id> <0-5>            set an image's rating
  fav <id>                   toggle an image's favorite flag
  tag <id> <tag>             add a tag to an image
  comment <id> <text>        set an image's comment
  undo                       undo the last edit
  redo                       redo the last undone edit
  groups                     list groups
  group-create <name>        create a group
  group-add <group> <ids...> add images to a group
  export-json <path>         export images and groups as JSON
  export-csv <path>          export image metadata as CSV
  import-json <path>         apply a JSON export
  backup                     copy the database next to itself
  reset --yes                delete every image, group, directory and history entry
  watch                      watch active directories until interrupted
`

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("mediacatalog %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}
	if len(os.Args) < 2 || os.Args[1] == "help" || os.Args[1] == "--help" {
		fmt.Print(usage)
		os.Exit(0)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: "mediacatalog",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
		WarnStack:   cfg.LogWarnStack,
		Output:      os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger, cmd string, args []string) (err error) {
	for _, w := range cfg.Warnings {
		log.Warn(ctx, w)
	}
	if err := config.EnsureDirs(cfg); err != nil {
		return err
	}
	if home, herr := os.UserHomeDir(); herr == nil {
		migrated, merr := config.MigrateLegacyDatabase(cfg, home)
		if merr != nil {
			log.Warn(log.WithField(ctx, "error", merr.Error()), "legacy database migration incomplete")
		} else if migrated {
			log.Info(log.WithField(ctx, "path", cfg.DatabasePath), "migrated legacy database")
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath, log)
	if err != nil {
		return err
	}
	if err := database.AutoMigrateModels(db); err != nil {
		return err
	}

	hub := realtime.NewHub()
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	tools := media.DiscoverTools(cfg.FFmpegPath, cfg.FFprobePath)
	if tools.FFmpeg == "" {
		log.Warn(ctx, "ffmpeg not found, video thumbnails are disabled")
	}
	if tools.FFprobe == "" {
		log.Warn(ctx, "ffprobe not found, videos are added without metadata")
	}

	g, err := gallery.New(gallery.Options{DB: db, Config: cfg, Tools: tools, Logger: log, Publisher: hub})
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, g.Close())
	}()

	if err := g.Load(ctx); err != nil {
		return err
	}
	defer printToasts(g)

	return dispatch(ctx, g, cfg, hub, cmd, args)
}

func dispatch(ctx context.Context, g *gallery.Gallery, cfg config.Config, hub *realtime.Hub, cmd string, args []string) error {
	switch cmd {
	case "scan":
		if err := need(args, 1, "scan <dir>"); err != nil {
			return err
		}
		if _, err := g.Library().AddDirectory(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("%d items in catalog\n", g.Store().Len())
		return nil

	case "list":
		return printItems(g.View())

	case "tags":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, tc := range g.Store().TagsWithCount() {
			fmt.Fprintf(w, "%s\t%d\n", tc.Tag, tc.Count)
		}
		return w.Flush()

	case "rate":
		if err := need(args, 2, "rate <id> <0-5>"); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		rating, err := strconv.Atoi(args[1])
		if err != nil {
			return apperrors.New(apperrors.CodeValidation, "rating must be a number from 0 to 5")
		}
		return editItem(ctx, g, id, func(edit *gallery.MetadataEdit) { edit.Rating = rating })

	case "fav":
		if err := need(args, 1, "fav <id>"); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		fav, err := g.ToggleFavorite(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("favorite: %t\n", fav)
		return nil

	case "tag":
		if err := need(args, 2, "tag <id> <tag>"); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return editItem(ctx, g, id, func(edit *gallery.MetadataEdit) {
			edit.Tags, _ = catalog.AddTag(edit.Tags, args[1])
		})

	case "comment":
		if err := need(args, 2, "comment <id> <text>"); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		text := strings.Join(args[1:], " ")
		return editItem(ctx, g, id, func(edit *gallery.MetadataEdit) { edit.Comment = text })

	case "undo", "redo":
		step := g.Undo
		if cmd == "redo" {
			step = g.Redo
		}
		done, err := step(ctx)
		if err != nil {
			return err
		}
		if !done {
			fmt.Printf("nothing to %s\n", cmd)
		}
		return nil

	case "groups":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCOLOR\tIMAGES")
		for _, grp := range g.Groups().List() {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", grp.ID, grp.Name, grp.Color, grp.ImageCount)
		}
		return w.Flush()

	case "group-create":
		if err := need(args, 1, "group-create <name>"); err != nil {
			return err
		}
		grp, err := g.Groups().Create(ctx, groups.GroupInput{Name: strings.Join(args, " ")})
		if err != nil {
			return err
		}
		fmt.Printf("created group %d\n", grp.ID)
		return nil

	case "group-add":
		if err := need(args, 2, "group-add <group> <ids...>"); err != nil {
			return err
		}
		groupID, err := parseID(args[0])
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(args)-1)
		for _, a := range args[1:] {
			id, err := parseID(a)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		_, err = g.Groups().AddImages(ctx, ids, groupID)
		return err

	case "export-json":
		if err := need(args, 1, "export-json <path>"); err != nil {
			return err
		}
		doc, err := g.Transfer().ExportJSON(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("exported %d images and %d groups\n", len(doc.Images), len(doc.Groups))
		return nil

	case "export-csv":
		if err := need(args, 1, "export-csv <path>"); err != nil {
			return err
		}
		n, err := g.Transfer().ExportCSV(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("exported %d images\n", n)
		return nil

	case "import-json":
		if err := need(args, 1, "import-json <path>"); err != nil {
			return err
		}
		summary, err := g.Transfer().ImportJSON(ctx, args[0])
		if err != nil {
			return err
		}
		if err := g.Refresh(ctx); err != nil {
			return err
		}
		fmt.Println(summary.String())
		return nil

	case "backup":
		dest, err := database.Backup(ctx, g.DB(), cfg.DatabasePath, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("backup written to %s\n", dest)
		return nil

	case "reset":
		if len(args) == 0 || args[0] != "--yes" {
			return apperrors.New(apperrors.CodeValidation, "reset deletes the whole catalog; run 'mediacatalog reset --yes' to confirm")
		}
		if err := database.Reset(ctx, g.DB()); err != nil {
			return err
		}
		if err := g.Refresh(ctx); err != nil {
			return err
		}
		fmt.Println("catalog reset")
		return nil

	case "watch":
		return watch(ctx, g, hub)

	default:
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown command %q\n\n%s", cmd, usage))
	}
}

// editItem loads the current metadata into an edit form, applies fn and saves it.
func editItem(ctx context.Context, g *gallery.Gallery, id int64, fn func(edit *gallery.MetadataEdit)) error {
	item, ok := g.Store().Item(id)
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("image %d not found", id))
	}
	edit := gallery.MetadataEdit{Rating: item.Rating, Tags: item.Tags}
	if item.Comment != nil {
		edit.Comment = *item.Comment
	}
	fn(&edit)
	return g.SaveMetadata(ctx, id, edit)
}

func watch(ctx context.Context, g *gallery.Gallery, hub *realtime.Hub) error {
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	if err := g.StartWatching(ctx); err != nil {
		return err
	}
	fmt.Println("watching for changes, press Ctrl+C to stop")
	for {
		select {
		case <-ctx.Done():
			return g.StopWatching()
		case ev, ok := <-events:
			if !ok {
				return g.StopWatching()
			}
			if ev.Type == realtime.EventToastShown {
				fmt.Println(ev.Message)
			}
		}
	}
}

func printItems(items []catalog.MediaItem) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tRATING\tFAV\tTAGS")
	for _, it := range items {
		fav := ""
		if it.IsFavorite {
			fav = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n", it.ID, it.FileName, it.FileType, it.Rating, fav, strings.Join(it.Tags, ", "))
	}
	return w.Flush()
}

func printToasts(g *gallery.Gallery) {
	for _, t := range g.Toasts().List() {
		fmt.Printf("[%s] %s\n", t.Kind, t.Message)
	}
}

func need(args []string, n int, form string) error {
	if len(args) < n {
		return apperrors.New(apperrors.CodeValidation, "usage: mediacatalog "+form)
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid id %q", s))
	}
	return id, nil
}

func describe(err error) string {
	if appErr := apperrors.As(err); appErr != nil {
		return fmt.Sprintf("%s (%s)", appErr.Message(), appErr.Code())
	}
	return err.Error()
}
