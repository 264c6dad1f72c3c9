package domain

import "time"

type Goal struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Completed bool    `json:"completed"`
	Duration  int     `json:"duration"`
	Calories  int     `json:"calories"`
	Weight    float64 `json:"weight"`
	UserID    *string `json:"userId"`
}

type Meal struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Day      time.Time `json:"day"`
	Calories int       `json:"calories"`
	Protein  int       `json:"protein"`
	Carbs    int       `json:"carbs"`
	Fat      int       `json:"fat"`
	UserID   *string   `json:"userId"`
}

// Session is a completed workout. GoalIDs lists the goals it counted toward.
type Session struct {
	ID       string    `json:"id"`
	Date     time.Time `json:"date"`
	Duration int       `json:"duration"`
	Calories int       `json:"calories"`
	Weight   float64   `json:"weight"`
	UserID   *string   `json:"userId"`
	GoalIDs  []string  `json:"goals"`
}
