package main

import (
	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-food-ordering/internal/entity"
)

func seedMenu() []entity.Product {
	return []entity.Product{
		{
			Name:        "Burger Classique",
			Description: "Steak de bœuf 100% avec laitue fraîche, tomate et notre sauce spéciale",
			Price:       decimal.RequireFromString("11.99"),
			Image:       "https://images.unsplash.com/photo-1568901346375-23c9450c58cd?auto=format&fit=crop&w=800&q=80",
			Category:    "Burgers",
			Active:      true,
			Stock:       50,
		},
		{
			Name:        "Pizza Margherita",
			Description: "Mozzarella fraîche, tomates et basilic sur notre pâte maison",
			Price:       decimal.RequireFromString("13.99"),
			Image:       "https://images.unsplash.com/photo-1604382355076-af4b0eb60143?auto=format&fit=crop&w=800&q=80",
			Category:    "Pizzas",
			Active:      true,
			Stock:       30,
		},
		{
			Name:        "Salade César",
			Description: "Laitue romaine croquante, parmesan, croûtons et sauce César",
			Price:       decimal.RequireFromString("8.99"),
			Image:       "https://images.unsplash.com/photo-1546793665-c74683f339c1?auto=format&fit=crop&w=800&q=80",
			Category:    "Salades",
			Active:      true,
			Stock:       25,
		},
		{
			Name:        "Ailes de Poulet",
			Description: "Ailes croustillantes avec sauce au choix",
			Price:       decimal.RequireFromString("10.99"),
			Image:       "https://images.unsplash.com/photo-1608039829572-78524f79c4c7?auto=format&fit=crop&w=800&q=80",
			Category:    "Entrées",
			Active:      true,
			Stock:       40,
		},
		{
			Name:        "Pâtes Carbonara",
			Description: "Pâtes fraîches avec sauce crémeuse, lardons et parmesan",
			Price:       decimal.RequireFromString("12.99"),
			Image:       "https://images.unsplash.com/photo-1612874742237-6526221588e3?auto=format&fit=crop&w=800&q=80",
			Category:    "Pâtes",
			Active:      true,
			Stock:       35,
		},
		{
			Name:        "Sushi Mix",
			Description: "Assortiment de 12 pièces de sushi avec sauce soja",
			Price:       decimal.RequireFromString("15.99"),
			Image:       "https://images.unsplash.com/photo-1579871494447-9811cf80d66c?auto=format&fit=crop&w=800&q=80",
			Category:    "Sushis",
			Active:      true,
			Stock:       20,
		},
	}
}
