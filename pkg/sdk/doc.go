// Package dirdex embeds the dirdex hybrid directory search in a Go program.
//
// The client owns the full pipeline: a SQL directory of profiles and
// projects, an in-memory BM25 index, a Valkey/Redis vector index, the query
// parser and an optional reranker.
//
//	client, err := dirdex.New(ctx,
//	    dirdex.WithRedis("localhost:6379", ""),
//	    dirdex.WithDirectory("sqlite", "file:directory.db"),
//	    dirdex.WithEmbedder(myEmbedder),
//	    dirdex.WithVectorDimensions(1536),
//	)
//	defer client.Close()
//
//	_ = client.Records().Upsert(ctx, dirdex.Record{
//	    Kind: dirdex.KindProfile, ID: "42",
//	    DisplayName: "Anna Schmidt", Location: "Berlin",
//	    Skills: []string{"Python", "ML"},
//	})
//	resp, _ := client.Search(ctx, "python developers in berlin", dirdex.SearchOptions{Limit: 10})
//
// Records written through Records() are indexed synchronously. Records
// written to the directory by other processes become searchable after
// Index().Rebuild and Index().Reembed.
package dirdex
