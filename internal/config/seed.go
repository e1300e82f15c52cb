package config

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/anasbld/pos_system/internal/hash"
	"github.com/anasbld/pos_system/internal/models"
)

var demoProducts = []models.Product{
	{Name: "Smartphone X10", Batch: "900800700", Category: "Electronics", Price: 599.99, Stock: 15, ImgURL: "./tmp/smartphone.jpg"},
	{Name: "Ultrabook Pro", Batch: "900800200", Category: "Electronics", Price: 1299.99, Stock: 8, ImgURL: "./tmp/ultrabook.jpg"},
	{Name: "Wireless Headphones", Batch: "900800077", Category: "Electronics", Price: 149.99, Stock: 22, ImgURL: "./tmp/bluetooth_headphones.jpg"},
	{Name: "Premium Coffee", Batch: "100987324", Category: "Groceries", Price: 12.99, Stock: 42, ImgURL: "./tmp/coffee.gif"},
	{Name: "Bestseller Novel", Batch: "200345670", Category: "Books", Price: 24.99, Stock: 17, ImgURL: "./tmp/novel.jpg"},
	{Name: "Cotton T-Shirt", Batch: "400234587", Category: "Clothing", Price: 19.99, Stock: 36, ImgURL: "./tmp/tshirt.jpg"},
	{Name: "Running Shoes", Batch: "400937512", Category: "Clothing", Price: 89.99, Stock: 14, ImgURL: "./tmp/running_shoes.jpg"},
	{Name: "Bluetooth Speaker", Batch: "900700322", Category: "Electronics", Price: 79.99, Stock: 25, ImgURL: "./tmp/bluetooth_speaker.jpg"},
}

// Seed creates the initial admin account and, when enabled, the demo catalog.
// It is a no-op for tables that already hold data.
func Seed(db *gorm.DB, cfg *Config) error {
	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", cfg.ADMIN_USERNAME).Count(&count).Error; err != nil {
		return fmt.Errorf("seed: user lookup failed: %w", err)
	}
	if count == 0 {
		pwHash, err := hash.HashPassword(hash.SHA256Hex(cfg.ADMIN_PASSWORD))
		if err != nil {
			return fmt.Errorf("seed: cannot hash admin password: %w", err)
		}
		admin := models.User{
			Username:     cfg.ADMIN_USERNAME,
			PasswordHash: pwHash,
			Role:         models.RoleAdmin,
		}
		if err := db.Create(&admin).Error; err != nil {
			return fmt.Errorf("seed: cannot create admin user: %w", err)
		}
	}

	if !cfg.SEED_DEMO_DATA {
		return nil
	}

	if err := db.Model(&models.Product{}).Count(&count).Error; err != nil {
		return fmt.Errorf("seed: product count failed: %w", err)
	}
	if count == 0 {
		products := make([]models.Product, len(demoProducts))
		copy(products, demoProducts)
		if err := db.Create(&products).Error; err != nil {
			return fmt.Errorf("seed: cannot create demo products: %w", err)
		}
	}
	return nil
}
