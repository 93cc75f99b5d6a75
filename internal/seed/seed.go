// Package seed fills an empty directory with the sample categories and
// pages. Running it again changes nothing.
package seed

import (
	"context"
	"fmt"

	"github.com/patric-chuzhbe/rango/internal/logger"
	"github.com/patric-chuzhbe/rango/internal/models"
)

type directory interface {
	GetOrCreateCategory(ctx context.Context, name string, views, likes int) (*models.Category, bool, error)

	GetOrCreatePage(
		ctx context.Context,
		category *models.Category,
		title,
		url string,
		views int,
	) (*models.Page, bool, error)

	ListPagesForCategory(ctx context.Context, category *models.Category) ([]models.Page, error)
}

// Page is a sample page.
type Page struct {
	Title string
	URL   string
	Views int
}

// Category is a sample category with its pages.
type Category struct {
	Name  string
	Views int
	Likes int
	Pages []Page
}

// Data is the sample content written by Populate.
var Data = []Category{
	{
		Name:  "Python",
		Views: 128,
		Likes: 64,
		Pages: []Page{
			{Title: "Official Python Tutorial", URL: "http://docs.python.org/3/tutorial/", Views: 65},
			{Title: "How to Think like a Computer Scientist", URL: "http://www.greenteapress.com/thinkpython/", Views: 77},
			{Title: "Learn Python in 10 Minutes", URL: "http://www.korokithakis.net/tutorials/python/", Views: 16},
		},
	},
	{
		Name:  "Django",
		Views: 64,
		Likes: 32,
		Pages: []Page{
			{Title: "Official Django Tutorial", URL: "https://docs.djangoproject.com/en/2.1/intro/tutorial01/", Views: 22},
			{Title: "Django Rocks", URL: "http://www.djangorocks.com/", Views: 97},
			{Title: "How to Tango with Django", URL: "http://www.tangowithdjango.com/", Views: 46},
		},
	},
	{
		Name:  "Other Frameworks",
		Views: 32,
		Likes: 16,
		Pages: []Page{
			{Title: "Bottle", URL: "http://bottlepy.org/docs/dev", Views: 60},
			{Title: "Flask", URL: "http://flask.pocoo.org", Views: 53},
		},
	},
}

// Populate get-or-creates every category and page of data and logs the
// resulting content of the seeded categories.
func Populate(ctx context.Context, db directory, data []Category) error {
	logger.Log.Infoln("Starting Rango population script...")

	seeded := make([]*models.Category, 0, len(data))
	for _, c := range data {
		category, _, err := db.GetOrCreateCategory(ctx, c.Name, c.Views, c.Likes)
		if err != nil {
			return fmt.Errorf("in internal/seed/seed.go/Populate(): error while `db.GetOrCreateCategory()` calling: %w", err)
		}
		for _, p := range c.Pages {
			_, _, err := db.GetOrCreatePage(ctx, category, p.Title, p.URL, p.Views)
			if err != nil {
				return fmt.Errorf("in internal/seed/seed.go/Populate(): error while `db.GetOrCreatePage()` calling: %w", err)
			}
		}
		seeded = append(seeded, category)
	}

	for _, category := range seeded {
		pages, err := db.ListPagesForCategory(ctx, category)
		if err != nil {
			return fmt.Errorf("in internal/seed/seed.go/Populate(): error while `db.ListPagesForCategory()` calling: %w", err)
		}
		for _, page := range pages {
			logger.Log.Infof("- %s: %s", category.Name, page.Title)
		}
	}

	return nil
}
