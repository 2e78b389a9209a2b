package importer

// SampleJSON returns a small quiz in the backend export format.
func SampleJSON() string {
	return sampleQuiz
}

const sampleQuiz = `{
    "message": "Quiz fetched successfully",
    "quiz": {
        "metadata": {
            "header": ["NEET 2026 Preparation Test"],
            "instructions": ["Choose the correct answer for each question", "Mark your answers clearly", "Time allowed: 90 minutes"],
            "footer": ["Good Luck!"],
            "watermark": {
                "enabled": true,
                "text": "PROF. P.C. THOMAS & CHAITHANYA CLASSES"
            }
        },
        "title": "HUMAN REPRODUCTION DPP-2 GAMETOGENESIS, MENSTRUAL CYCLE",
        "sections": [
            {
                "name": "Biology Section",
                "questions": [
                    {
                        "_id": "sample1",
                        "question_text": "At which stage of life the oogenesis process is initiated?",
                        "option_a": "Puberty",
                        "option_b": "Embryonic development stage",
                        "option_c": "Birth",
                        "option_d": "Adult",
                        "correct_answer": "B",
                        "explanation": "Oogenesis is initiated during embryonic development stage when a couple of million oogonia are formed within each fetal ovary."
                    }
                ]
            },
            {
                "name": "Mathematics Section",
                "questions": [
                    {
                        "_id": {"$oid": "sample2"},
                        "question_text": "Solve $x^2 - 5x + 6 = 0$",
                        "option_a": "$x = 2, 3$",
                        "option_b": "$x = -2, -3$",
                        "option_c": "$x = 1, 6$",
                        "option_d": "$x = -1, -6$",
                        "correct_answer": "$x = 2, 3$",
                        "explanation": "Factor: $$(x-2)(x-3) = 0$$"
                    },
                    {
                        "_id": "sample3",
                        "question_text": "Read the table: \\begin{tabular}{cc}$x$ & Label \\\\ $y$ & Value\\end{tabular} Which symbol is labelled?",
                        "option_a": "$x$",
                        "option_b": "$y$",
                        "option_c": "both",
                        "option_d": "neither",
                        "option_e": "cannot tell",
                        "correct_answer": "a"
                    }
                ]
            }
        ]
    }
}`
