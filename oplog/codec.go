package oplog

import (
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/view"
)

// diskRef is the JSON wire form of a view.RefTarget: its raw terms,
// including the otherwise-hidden absent term, so a conflicted ref
// round-trips exactly (view.RefTarget.Terms's doc explains why the
// filtered Adds()/Removes() view can't be used for this).
type diskRef struct {
	Adds    []diskTerm `json:"adds"`
	Removes []diskTerm `json:"removes,omitempty"`
}

type diskTerm struct {
	Present bool            `json:"present"`
	Id      objecthash.Hash `json:"id,omitempty"`
}

func encodeRef(r view.RefTarget) diskRef {
	adds, removes := r.Terms()
	return diskRef{Adds: encodeTerms(adds), Removes: encodeTerms(removes)}
}

func encodeTerms(ts []view.Term) []diskTerm {
	out := make([]diskTerm, len(ts))
	for i, t := range ts {
		out[i] = diskTerm{Present: t.Present, Id: t.Id}
	}
	return out
}

func decodeRef(d diskRef) view.RefTarget {
	return view.FromTerms(decodeTerms(d.Adds), decodeTerms(d.Removes))
}

func decodeTerms(ds []diskTerm) []view.Term {
	out := make([]view.Term, len(ds))
	for i, d := range ds {
		out[i] = view.Term{Present: d.Present, Id: d.Id}
	}
	return out
}

type diskRemoteRef struct {
	Target   diskRef `json:"target"`
	Tracking bool    `json:"tracking"`
}

type diskView struct {
	HeadIds        []objecthash.Hash                  `json:"head_ids"`
	LocalBookmarks map[string]diskRef                 `json:"local_bookmarks"`
	Tags           map[string]diskRef                 `json:"tags"`
	RemoteViews    map[string]map[string]diskRemoteRef `json:"remote_views"`
	GitRefs        map[string]diskRef                  `json:"git_refs"`
	GitHead        diskRef                             `json:"git_head"`
	WcCommitIds    map[string]objecthash.Hash          `json:"wc_commit_ids"`
}

func encodeView(v *view.View) diskView {
	d := diskView{
		HeadIds:        v.HeadIds,
		LocalBookmarks: map[string]diskRef{},
		Tags:           map[string]diskRef{},
		RemoteViews:    map[string]map[string]diskRemoteRef{},
		GitRefs:        map[string]diskRef{},
		GitHead:        encodeRef(v.GitHead),
		WcCommitIds:    map[string]objecthash.Hash{},
	}
	for k, r := range v.LocalBookmarks {
		d.LocalBookmarks[k] = encodeRef(r)
	}
	for k, r := range v.Tags {
		d.Tags[k] = encodeRef(r)
	}
	for k, r := range v.GitRefs {
		d.GitRefs[k] = encodeRef(r)
	}
	for remote, refs := range v.RemoteViews {
		d.RemoteViews[remote] = map[string]diskRemoteRef{}
		for name, r := range refs {
			d.RemoteViews[remote][name] = diskRemoteRef{Target: encodeRef(r.Target), Tracking: r.Tracking}
		}
	}
	for w, id := range v.WcCommitIds {
		d.WcCommitIds[string(w)] = id
	}
	return d
}

func decodeView(d diskView) *view.View {
	v := view.Empty()
	v.HeadIds = d.HeadIds
	v.GitHead = decodeRef(d.GitHead)
	for k, r := range d.LocalBookmarks {
		v.LocalBookmarks[k] = decodeRef(r)
	}
	for k, r := range d.Tags {
		v.Tags[k] = decodeRef(r)
	}
	for k, r := range d.GitRefs {
		v.GitRefs[k] = decodeRef(r)
	}
	for remote, refs := range d.RemoteViews {
		v.RemoteViews[remote] = map[string]view.RemoteRef{}
		for name, r := range refs {
			v.RemoteViews[remote][name] = view.RemoteRef{Target: decodeRef(r.Target), Tracking: r.Tracking}
		}
	}
	v.WcCommitIds = map[view.WorkspaceId]objecthash.Hash{}
	for w, id := range d.WcCommitIds {
		v.WcCommitIds[view.WorkspaceId(w)] = id
	}
	return v
}
