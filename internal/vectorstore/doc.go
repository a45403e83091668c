// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package vectorstore wraps github.com/qdrant/go-client for the three
collections this service maintains: content-vectors (title/synopsis
embeddings used by hybrid search), user-embeddings, and item-embeddings.
Open creates all three, but no code upserts to or searches the latter two;
the personalization fallback does not query them. All three use cosine
distance and a fixed dimension taken from configuration.

Open ensures collections exist before returning; callers then use
UpsertPoints and SearchPoints directly against the collection name they
need (Store.ContentCollection/UserCollection/ItemCollection).
*/
package vectorstore
