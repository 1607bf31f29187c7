package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"civico/backend/internal/models"
	"civico/backend/internal/storage"
)

func main() {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: seed-types, add-type <name> [keywords,csv], disable-type <id>, list-types")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "seed-types":
		if err := seedTypes(db); err != nil {
			log.Fatalf("Error seeding types: %v", err)
		}
		fmt.Println("Complaint type catalog seeded.")
	case "add-type":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin add-type <name> [keywords,csv]")
			os.Exit(1)
		}
		var keywords []string
		if len(os.Args) > 3 {
			keywords = strings.Split(os.Args[3], ",")
		}
		if err := addType(db, os.Args[2], keywords); err != nil {
			log.Fatalf("Error adding type: %v", err)
		}
		fmt.Printf("Type %q added.\n", os.Args[2])
	case "disable-type":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin disable-type <id>")
			os.Exit(1)
		}
		id, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fmt.Println("Invalid type ID. Please provide an integer.")
			os.Exit(1)
		}
		if err := disableType(db, uint(id)); err != nil {
			log.Fatalf("Error disabling type: %v", err)
		}
		fmt.Printf("Type %d disabled.\n", id)
	case "list-types":
		if err := listTypes(db); err != nil {
			log.Fatalf("Error listing types: %v", err)
		}
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

// seedTypes installs the baseline catalog a municipality starts with.
func seedTypes(db *gorm.DB) error {
	seed := []models.ComplaintType{
		{Name: "Recolección de basura", Keywords: pq.StringArray{"basura", "aseo", "trash", "garbage", "sanitation"}, Active: true},
		{Name: "Alumbrado público", Keywords: pq.StringArray{"alumbrado", "luz", "poste", "lamp"}, Active: true},
		{Name: "Vías y baches", Keywords: pq.StringArray{"vias", "vías", "bache", "calle", "pothole"}, Active: true},
		{Name: "Agua potable y alcantarillado", Keywords: pq.StringArray{"agua", "alcantarilla", "fuga", "sewer"}, Active: true},
		{Name: "Espacios públicos", Keywords: pq.StringArray{"parque", "plaza", "espacio publico"}, Active: true},
	}
	for _, t := range seed {
		var existing models.ComplaintType
		err := db.Where("name = ?", t.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		if err := db.Create(&t).Error; err != nil {
			return err
		}
	}
	return nil
}

func addType(db *gorm.DB, name string, keywords []string) error {
	for i := range keywords {
		keywords[i] = strings.TrimSpace(keywords[i])
	}
	return db.Create(&models.ComplaintType{
		Name:     name,
		Keywords: pq.StringArray(keywords),
		Active:   true,
	}).Error
}

func disableType(db *gorm.DB, id uint) error {
	return db.Model(&models.ComplaintType{}).Where("id = ?", id).Update("active", false).Error
}

func listTypes(db *gorm.DB) error {
	var types []models.ComplaintType
	if err := db.Order("id asc").Find(&types).Error; err != nil {
		return err
	}
	for _, t := range types {
		state := "active"
		if !t.Active {
			state = "disabled"
		}
		fmt.Printf("%3d  %-40s %-8s %s\n", t.ID, t.Name, state, strings.Join(t.Keywords, ","))
	}
	return nil
}
