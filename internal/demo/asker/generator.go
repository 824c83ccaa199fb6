package asker

import (
	"fmt"
	"math/rand"
)

type template struct {
	weight int
	render func(r *rand.Rand) string
}

var (
	categories = []string{"Electronics", "Books", "Home", "Sports"}
	customers  = []string{"Alice Johnson", "Bob Smith", "Carol White", "David Brown", "Eva Green"}
)

// templates covers the seeded commerce tables. The last entry asks for a
// write so the safety gate sees traffic too.
var templates = []template{
	{weight: 15, render: func(*rand.Rand) string { return "How many products are there?" }},
	{weight: 15, render: func(r *rand.Rand) string {
		return fmt.Sprintf("Show the top %d most expensive products", 3+r.Intn(5))
	}},
	{weight: 12, render: func(r *rand.Rand) string {
		return fmt.Sprintf("List all products in the %s category", pickOne(r, categories))
	}},
	{weight: 12, render: func(*rand.Rand) string { return "What is the total revenue by product category?" }},
	{weight: 10, render: func(r *rand.Rand) string {
		return fmt.Sprintf("Which orders have a total amount over %d?", 100*(1+r.Intn(9)))
	}},
	{weight: 10, render: func(r *rand.Rand) string {
		return fmt.Sprintf("What has %s ordered?", pickOne(r, customers))
	}},
	{weight: 10, render: func(*rand.Rand) string { return "How much has each customer spent in total?" }},
	{weight: 8, render: func(*rand.Rand) string { return "How many orders were placed each month?" }},
	{weight: 5, render: func(*rand.Rand) string { return "Which product has sold the most units?" }},
	{weight: 3, render: func(r *rand.Rand) string {
		return fmt.Sprintf("Delete every order placed by %s", pickOne(r, customers))
	}},
}

// Generator produces a reproducible stream of questions for a seed.
type Generator struct {
	rnd   *rand.Rand
	total int
}

func NewGenerator(seed int64) *Generator {
	total := 0
	for _, t := range templates {
		total += t.weight
	}
	return &Generator{rnd: rand.New(rand.NewSource(seed)), total: total}
}

func (g *Generator) NextQuestion() string {
	p := g.rnd.Intn(g.total)
	for _, t := range templates {
		if p < t.weight {
			return t.render(g.rnd)
		}
		p -= t.weight
	}
	return templates[0].render(g.rnd)
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
