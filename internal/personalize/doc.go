// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package personalize trains and applies per-user LoRA-style ranking
// adapters, per spec.md §4.D.
//
// An adapter is a low-rank pair (A, B) with A of shape rank×dim and B of
// shape dim×rank, rank << dim. Given a content feature vector e, the
// adapter contributes sigma * cos(u*B*A, e) to that content's base search
// score, where u is the user's own feature vector. Training is
// confidence-weighted ALS: for each user, A and B are solved alternately
// via Cholesky-solved normal equations built from that user's watch
// history, the same idiom as the collaborative-filtering algorithm this
// package generalizes.
//
// Adapters persist through internal/store's lora_adapters table as
// append-only versions; the highest version for a (user, name) pair wins.
// Users with no adapter yet fall back to a collaborative estimate: the
// similarity-weighted average of the ratings that the most similar users
// (by genre taste vector, from an in-memory pool the training scheduler
// refreshes) derive from their own watch history of that title. The
// fallback does not query the vector store's user-embedding collection.
package personalize
