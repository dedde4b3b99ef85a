package content

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
)

func mockNotes(topic *models.Topic) string {
	return fmt.Sprintf(`# %[1]s

## Overview
%[2]s

This section covers the fundamental concepts and principles related to %[1]s.

## Key Concepts

### Foundation
The foundational principle of %[1]s establishes the basic framework for more advanced topics.

**Important Definition:** the key term refers to the fundamental unit of analysis in this domain.

## Detailed Content

- **Principle A**: core principle that governs behaviour
- **Principle B**: secondary principle that modifies outcomes

## Summary
%[1]s builds from a small set of principles to practical applications.
`, topic.Name, topic.Description)
}

func mockExamples(topic *models.Topic, kind models.ContentType, count int, difficulty string) []map[string]any {
	out := make([]map[string]any, 0, count)
	for i := 1; i <= count; i++ {
		ex := map[string]any{
			"title":             fmt.Sprintf("%s example %d", topic.Name, i),
			"problem_statement": fmt.Sprintf("Apply the main idea of %s to a new situation.", topic.Name),
			"key_concepts":      []string{topic.Name},
			"difficulty":        difficulty,
		}
		if kind == models.ContentInteractiveExample {
			ex["steps"] = []map[string]any{{
				"step_number":        1,
				"question":           "Which principle applies here?",
				"hint":               "Start from the definition.",
				"answer_type":        "text",
				"correct_answer":     "the core principle",
				"acceptable_answers": []string{"core principle"},
				"explanation":        "The definition tells us which principle governs the setup.",
				"feedback_correct":   "Exactly right.",
				"feedback_incorrect": "Revisit the definition and try again.",
			}}
			ex["estimated_time_minutes"] = 10
		} else {
			ex["solution_steps"] = []map[string]any{{
				"step_number": 1,
				"description": "Identify the governing principle",
				"work":        "Map the problem onto the definition.",
				"explanation": "Everything else follows from the definition.",
			}}
			ex["final_answer"] = "The core principle explains the outcome."
		}
		out = append(out, ex)
	}
	return out
}

func mockQuestions(topicName string, count int, types []string, difficulty string) []models.Question {
	if len(types) == 0 {
		types = []string{models.QuestionMultipleChoice}
	}
	out := make([]models.Question, 0, count)
	for i := 0; i < count; i++ {
		switch types[i%len(types)] {
		case models.QuestionMultipleChoice:
			out = append(out, models.Question{
				QuestionType: models.QuestionMultipleChoice,
				QuestionText: fmt.Sprintf("Which concept is most important in %s?", topicName),
				Options: []models.QuestionOption{
					{ID: "A", Text: "Concept A"},
					{ID: "B", Text: "Concept B"},
					{ID: "C", Text: "Concept C"},
					{ID: "D", Text: "Concept D"},
				},
				CorrectAnswer: "B",
				Explanation:   fmt.Sprintf("Concept B is fundamental to %s.", topicName),
				Points:        2,
				Difficulty:    difficulty,
			})
		case models.QuestionShortAnswer:
			out = append(out, models.Question{
				QuestionType: models.QuestionShortAnswer,
				QuestionText: fmt.Sprintf("Explain the key principle of %s.", topicName),
				SampleAnswer: "The key principle involves understanding the relationship between components and applying systematic methods.",
				KeyPoints:    []string{"Relationship between components", "Systematic methods", "Practical application"},
				Explanation:  "Answer should cover main concepts and applications.",
				Points:       3,
				Difficulty:   difficulty,
			})
		case models.QuestionNumerical:
			out = append(out, models.Question{
				QuestionType:  models.QuestionNumerical,
				QuestionText:  fmt.Sprintf("Calculate the result for %s given A=10, B=5.", topicName),
				CorrectAnswer: 50.0,
				Unit:          "units",
				Tolerance:     0.5,
				Explanation:   "Result = A x B = 10 x 5 = 50",
				Points:        3,
				Difficulty:    difficulty,
			})
		default:
			out = append(out, models.Question{
				QuestionType:  models.QuestionTrueFalse,
				QuestionText:  fmt.Sprintf("%s requires consideration of multiple variables.", topicName),
				CorrectAnswer: true,
				Explanation:   fmt.Sprintf("True, %s involves multiple interconnected factors.", topicName),
				Points:        1,
				Difficulty:    difficulty,
			})
		}
	}
	return out
}

var drillStems = []string{
	"In your own words, what is the core idea behind %s?",
	"Why does %s matter, and where does it show up in practice?",
	"How would you explain %s to a classmate who has never seen it?",
	"What is a common misconception about %s?",
	"How does %s relate to the topics studied before it?",
	"What trade-offs come up when applying %s?",
}

func mockDrill(topicName string, count int, difficulty string) []models.Question {
	out := make([]models.Question, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, models.Question{
			QuestionType:   models.QuestionConceptual,
			QuestionText:   fmt.Sprintf(drillStems[i%len(drillStems)], topicName),
			KeyPoints:      []string{"core definition", "practical relevance"},
			SampleAnswer:   fmt.Sprintf("%s rests on a core definition and has clear practical relevance.", topicName),
			Explanation:    "A good answer states the definition and connects it to practice.",
			Difficulty:     difficulty,
			ConceptsTested: []string{topicName},
		})
	}
	return out
}

// mockTopics derives topics from the top-level sections of the samples.
func mockTopics(samples []repositories.SectionSample) []ExtractedTopic {
	var out []ExtractedTopic
	for _, s := range samples {
		top := strings.TrimSpace(strings.Split(s.SectionHierarchy, " > ")[0])
		if top == "" {
			continue
		}
		out = append(out, ExtractedTopic{
			Name:        top,
			Description: fmt.Sprintf("Material covered under %q in %s.", top, s.Filename),
			Keywords:    keywordsFrom(top),
		})
	}
	return out
}

func keywordsFrom(heading string) []string {
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(heading), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if len(w) >= 3 {
			out = append(out, w)
		}
	}
	return out
}
