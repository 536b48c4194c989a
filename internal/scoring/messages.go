package scoring

import (
	"math/rand"

	"github.com/klairtech/thalassemia-quiz/internal/domain"
)

// gradeMessages holds three pre-written messages per grade; one is picked at
// random for the result screen.
var gradeMessages = map[domain.Grade][]string{
	domain.GradeAPlus: {
		"Outstanding! You are a Thalassemia awareness champion! 🌟",
		"Perfect score! You truly understand Thalassemia prevention! 🏆",
		"Exceptional knowledge! You could teach others about Thalassemia! 👑",
	},
	domain.GradeA: {
		"Excellent work! You have great knowledge about Thalassemia! 🎉",
		"Fantastic! You understand Thalassemia prevention well! ⭐",
		"Amazing! You are well-informed about Thalassemia! 🌟",
	},
	domain.GradeBPlus: {
		"Great job! You have good knowledge about Thalassemia! 👍",
		"Well done! You understand most Thalassemia concepts! 🎯",
		"Good work! You are on the right track with Thalassemia awareness! 📚",
	},
	domain.GradeB: {
		"Good effort! You have decent knowledge about Thalassemia! ✅",
		"Nice work! You understand basic Thalassemia concepts! 📖",
		"Well done! Keep learning about Thalassemia prevention! 🌱",
	},
	domain.GradeCPlus: {
		"Not bad! You have some knowledge about Thalassemia! 📝",
		"Keep learning! You are making progress with Thalassemia awareness! 📈",
		"Good start! Continue exploring Thalassemia information! 🔍",
	},
	domain.GradeC: {
		"Room for improvement! Keep studying Thalassemia! 📚",
		"Keep trying! Learning about Thalassemia is important! 💪",
		"Don't give up! Every step in Thalassemia awareness matters! 🚀",
	},
	domain.GradeD: {
		"Keep learning! Thalassemia awareness is crucial for health! 🎓",
		"Study more! Understanding Thalassemia can save lives! ❤️",
		"Don't stop! Thalassemia knowledge is valuable! 🌟",
	},
	domain.GradeF: {
		"Let's learn together! Thalassemia awareness starts with knowledge! 🤝",
		"Every expert was once a beginner! Keep learning about Thalassemia! 🌱",
		"Knowledge is power! Start your Thalassemia learning journey today! 💡",
	},
}

// MessageFor picks one of the grade's messages using the supplied random
// source, so callers (and tests) control reproducibility.
func MessageFor(grade domain.Grade, rng *rand.Rand) string {
	pool, ok := gradeMessages[grade]
	if !ok {
		pool = gradeMessages[domain.GradeF]
	}
	return pool[rng.Intn(len(pool))]
}
