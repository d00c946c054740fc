package app

import (
	"hash/fnv"
	"math/rand"

	"quiz-gate-service/internal/domain"
)

// SelectQuestions draws count questions from bank using a permutation seeded by seed.
// offset shifts the window over the permutation (wrapping), so a returning user can be
// given a different subset while staying deterministic.
func SelectQuestions(bank []domain.Question, seed string, count, offset int) (domain.QuestionSet, error) {
	if len(bank) == 0 || count <= 0 || count > len(bank) {
		return nil, &domain.SeedError{Requested: count, Available: len(bank)}
	}
	if offset < 0 {
		offset = 0
	}

	perm := permutation(len(bank), seedValue(seed))
	set := make(domain.QuestionSet, 0, count)
	for i := 0; i < count; i++ {
		set = append(set, bank[perm[(offset+i)%len(bank)]])
	}
	return set, nil
}

// RepeatOffset is the selection offset for a user with the given progress.
func RepeatOffset(progress domain.Progress, count int) int {
	if progress.CompletedBefore {
		return count
	}
	return 0
}

func seedValue(seed string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return int64(h.Sum64())
}

// permutation is a Fisher-Yates shuffle of [0, n) driven by a seeded source.
func permutation(n int, seed int64) []int {
	rnd := rand.New(rand.NewSource(seed))
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx
}
