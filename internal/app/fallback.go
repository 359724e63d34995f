package app

import (
	"fmt"
	"time"

	"glassmind-quiz-service/internal/domain"
)

// fallbackQuestions is the fixed demo set served whenever generation fails.
func fallbackQuestions(topic string) []domain.Question {
	return []domain.Question{
		{
			ID:                 "m1",
			Text:               fmt.Sprintf("What is the main subject of study in %q? (demo mode)", topic),
			Options:            []string{"Innovation", "History", "Biology", "Physics"},
			CorrectAnswerIndex: 0,
			Explanation:        "This is a demo question: the question service is unavailable.",
		},
		{
			ID:                 "m2",
			Text:               "In which year was the World Wide Web invented?",
			Options:            []string{"1989", "1995", "2001", "1980"},
			CorrectAnswerIndex: 0,
			Explanation:        "Tim Berners-Lee invented the WWW in 1989.",
		},
		{
			ID:                 "m3",
			Text:               "Which planet is the largest in the Solar System?",
			Options:            []string{"Earth", "Mars", "Jupiter", "Saturn"},
			CorrectAnswerIndex: 2,
			Explanation:        "Jupiter is the largest planet.",
		},
		{
			ID:                 "m4",
			Text:               "How many chromosomes does a healthy human have?",
			Options:            []string{"42", "44", "46", "48"},
			CorrectAnswerIndex: 2,
			Explanation:        "Humans have 46 chromosomes (23 pairs).",
		},
		{
			ID:                 "m5",
			Text:               "Who wrote \"War and Peace\"?",
			Options:            []string{"Dostoevsky", "Tolstoy", "Chekhov", "Pushkin"},
			CorrectAnswerIndex: 1,
			Explanation:        "The author is Leo Tolstoy.",
		},
	}
}

// demoLeaderboard is shown when the profile store cannot be read.
func demoLeaderboard(now time.Time) domain.Leaderboard {
	entries := []domain.PlayerProfile{
		{ID: "1", Name: "Alexey K.", Points: 12500, Streak: 15},
		{ID: "2", Name: "Maria S.", Points: 11200, Streak: 8},
		{ID: "3", Name: "Dmitry", Points: 9800, Streak: 3},
		{ID: "4", Name: "Elena R.", Points: 8500, Streak: 0},
		{ID: "5", Name: "Ivan D.", Points: 7200, Streak: 1},
	}
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].Avatar = fmt.Sprintf("https://picsum.photos/100/100?random=%d", i+1)
	}
	return domain.Leaderboard{Entries: entries, Degraded: true, UpdatedAt: now}
}
