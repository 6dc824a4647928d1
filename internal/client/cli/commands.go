package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/boardsync/internal/filex"
	"github.com/dmitrijs2005/boardsync/internal/wire"
)

var errUsage = errors.New("usage error")

func usage(format string, args ...any) error {
	fmt.Printf(format+"\n", args...)
	return errUsage
}

func parseCoords(xs, ys string) (float64, float64, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// Put creates a new entity: put <type> <x> <y> [width height].
func (a *App) Put(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return usage("Usage: put <type> <x> <y> [width height]")
	}

	x, y, err := parseCoords(args[1], args[2])
	if err != nil {
		return usage("Bad coordinates: %v", err)
	}

	entity := wire.Entity{
		ID:     uuid.NewString(),
		Type:   wire.EntityType(args[0]),
		X:      x,
		Y:      y,
		Width:  100,
		Height: 100,
	}
	if len(args) >= 5 {
		if entity.Width, err = strconv.ParseFloat(args[3], 64); err != nil {
			return usage("Bad width: %v", err)
		}
		if entity.Height, err = strconv.ParseFloat(args[4], 64); err != nil {
			return usage("Bad height: %v", err)
		}
	}

	if err := a.session.UpsertEntity(entity); err != nil {
		log.Println(err.Error())
		return err
	}
	fmt.Println(entity.ID)
	return nil
}

// Move updates an entity position: move <id> <x> <y>.
func (a *App) Move(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usage("Usage: move <id> <x> <y>")
	}

	entity, ok := a.session.Entity(args[0])
	if !ok {
		return usage("No such entity: %s", args[0])
	}

	x, y, err := parseCoords(args[1], args[2])
	if err != nil {
		return usage("Bad coordinates: %v", err)
	}

	entity.X, entity.Y = x, y
	if err := a.session.UpsertEntity(entity); err != nil {
		log.Println(err.Error())
		return err
	}
	return nil
}

// SetText replaces an entity's text: text <id> <words...>.
func (a *App) SetText(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("Usage: text <id> <text>")
	}

	entity, ok := a.session.Entity(args[0])
	if !ok {
		return usage("No such entity: %s", args[0])
	}

	entity.Text = ""
	for i, word := range args[1:] {
		if i > 0 {
			entity.Text += " "
		}
		entity.Text += word
	}

	if err := a.session.UpsertEntity(entity); err != nil {
		log.Println(err.Error())
		return err
	}
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("Usage: delete <id>")
	}
	if err := a.session.DeleteEntity(ctx, args[0]); err != nil {
		log.Println(err.Error())
		return err
	}
	return nil
}

// Flush forces an immediate write for an entity instead of waiting for the
// quiet period.
func (a *App) Flush(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("Usage: flush <id>")
	}
	if err := a.session.FlushEntity(ctx, args[0]); err != nil {
		log.Println(err.Error())
		return err
	}
	return nil
}

func (a *App) List(ctx context.Context) error {
	entities := a.session.Entities()
	sort.Slice(entities, func(i, j int) bool { return entities[i].OrderIndex < entities[j].OrderIndex })

	for _, entity := range entities {
		fmt.Printf("%s  %-8s  (%.1f, %.1f)\n", entity.ID, entity.Type, entity.X, entity.Y)
	}
	fmt.Printf("%d entities\n", len(entities))
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("Usage: show <id>")
	}

	entity, ok := a.session.Entity(args[0])
	if !ok {
		return usage("No such entity: %s", args[0])
	}

	fmt.Printf("%s %s at (%.1f, %.1f) size %.0fx%.0f", entity.ID, entity.Type,
		entity.X, entity.Y, entity.Width, entity.Height)
	if entity.Text != "" {
		fmt.Printf(" text=%q", entity.Text)
	}
	if entity.AssetID != "" {
		fmt.Printf(" asset=%s", entity.AssetID)
	}
	fmt.Printf(" updated=%s\n", entity.UpdatedAt.Format("15:04:05.000"))
	return nil
}

func (a *App) Save(ctx context.Context) error {
	if err := a.session.SaveSnapshot(ctx); err != nil {
		log.Println(err.Error())
		return err
	}
	fmt.Println("Snapshot saved")
	return nil
}

// Upload stages an image file and starts its transfer: upload <path>.
func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("Usage: upload <path>")
	}

	blob, mimeType, err := filex.LoadAsset(args[0])
	if err != nil {
		log.Println(err.Error())
		return err
	}

	asset, err := a.session.StageUpload(ctx, blob, mimeType)
	if err != nil {
		log.Println(err.Error())
		return err
	}
	fmt.Printf("Staged asset %s (%s, %d bytes)\n", asset.ID, asset.MimeType, asset.Size)
	return nil
}

// PlaceImage creates an image entity referencing a staged or ready asset:
// image <assetId> <x> <y>.
func (a *App) PlaceImage(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usage("Usage: image <assetId> <x> <y>")
	}

	x, y, err := parseCoords(args[1], args[2])
	if err != nil {
		return usage("Bad coordinates: %v", err)
	}

	entity := wire.Entity{
		ID:      uuid.NewString(),
		Type:    wire.EntityImage,
		X:       x,
		Y:       y,
		Width:   200,
		Height:  200,
		AssetID: args[0],
	}
	if err := a.session.UpsertEntity(entity); err != nil {
		log.Println(err.Error())
		return err
	}
	fmt.Println(entity.ID)
	return nil
}

func (a *App) Resume(ctx context.Context) error {
	if err := a.session.ResumeUploads(ctx); err != nil {
		log.Println(err.Error())
		return err
	}
	return nil
}

func (a *App) Users(ctx context.Context) error {
	a.mu.Lock()
	users := append([]wire.Presence(nil), a.users...)
	a.mu.Unlock()

	for _, user := range users {
		line := fmt.Sprintf("%s  %s", user.SessionID, user.DisplayName)
		if user.Cursor != nil {
			line += fmt.Sprintf("  cursor (%.1f, %.1f)", user.Cursor.X, user.Cursor.Y)
		}
		fmt.Println(line)
	}
	fmt.Printf("%d online\n", len(users))
	return nil
}

func (a *App) Cursor(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("Usage: cursor <x> <y>")
	}
	x, y, err := parseCoords(args[0], args[1])
	if err != nil {
		return usage("Bad coordinates: %v", err)
	}
	if err := a.session.PublishCursor(ctx, x, y); err != nil {
		log.Println(err.Error())
		return err
	}
	return nil
}

func (a *App) Drag(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usage("Usage: drag <id> <x> <y>")
	}
	x, y, err := parseCoords(args[1], args[2])
	if err != nil {
		return usage("Bad coordinates: %v", err)
	}
	if err := a.session.PublishDrag(ctx, args[0], x, y); err != nil {
		log.Println(err.Error())
		return err
	}
	return nil
}

func (a *App) DragEnd(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("Usage: dragend <id>")
	}
	if err := a.session.EndDrag(ctx, args[0]); err != nil {
		log.Println(err.Error())
		return err
	}
	return nil
}

// Drags prints the latest smoothed position of every remote drag in flight.
func (a *App) Drags(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for entityID, pos := range a.drags {
		fmt.Printf("%s  (%.1f, %.1f)\n", entityID, pos.X, pos.Y)
	}
	return nil
}
