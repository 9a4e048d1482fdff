package cmd

import (
	"context"
	"fmt"
	"strings"

	"foodcart/logging"
	"foodcart/models"

	"github.com/jaswdr/faker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var seedItems int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the configured store with sample menu items",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Store.Driver == "memory" {
			return fmt.Errorf("seeding the memory store has no effect; pick a persistent store driver")
		}
		log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		backend, err := openBackend(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer backend.Close(context.Background())

		fake := faker.New()
		bar := progressbar.Default(int64(seedItems), "seeding menu")
		for i := 0; i < seedItems; i++ {
			if _, err := backend.InsertItem(ctx, sampleItem(fake)); err != nil {
				return fmt.Errorf("insert item %d: %w", i+1, err)
			}
			bar.Add(1)
		}
		log.WithField("items", seedItems).Info("menu seeded")
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedItems, "items", 20, "number of menu items to create")
}

var (
	dishes = []string{"Masala Dosa", "Idli Sambar", "Paneer Butter Masala", "Chicken Biryani", "Veg Pulao",
		"Chole Bhature", "Pav Bhaji", "Rava Upma", "Aloo Paratha", "Gulab Jamun"}
	sizes = []string{"", "Regular", "Large", "Family"}
)

func sampleItem(fake faker.Faker) models.FoodItemDraft {
	name := dishes[fake.IntBetween(0, len(dishes)-1)]
	size := sizes[fake.IntBetween(0, len(sizes)-1)]
	if size != "" {
		name = strings.TrimSpace(name + " (" + size + ")")
	}
	return models.FoodItemDraft{
		Name:        name,
		Description: fake.Lorem().Sentence(10),
		Size:        size,
		Price:       fake.Float64(2, 40, 450),
	}
}
