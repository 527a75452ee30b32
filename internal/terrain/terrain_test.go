package terrain

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/louisbranch/skirmish.space/internal/mapfile"
	"github.com/louisbranch/skirmish.space/internal/property"
)

func testMap() *mapfile.Map {
	return &mapfile.Map{
		Name:     "arena",
		TileSize: 64,
		Layers: []mapfile.Layer{
			{Width: 2, Height: 2, Tiles: []uint32{1, 2, 3, 4}},
			{Width: 1, Height: 1, Tiles: []uint32{9}},
		},
	}
}

func TestNewCopiesTileGrids(t *testing.T) {
	m := testMap()
	tr := New(m)
	layer, ok := tr.Layer(0)
	if !ok {
		t.Fatal("layer 0 missing")
	}
	layer.SetTile(0, 0, 99)
	if m.Layers[0].Tiles[0] != 1 {
		t.Fatal("terrain mutated the source map")
	}
	if layer.Tile(0, 0) != 99 {
		t.Fatal("tile write lost")
	}
	if layer.Tile(5, 5) != 0 {
		t.Fatal("out-of-bounds read should be 0")
	}
}

func TestSpawnDeferredUntilAdvance(t *testing.T) {
	tr := New(testMap())
	layer, _ := tr.Layer(0)
	e := layer.Spawn(Spawn{Element: "crate", Owner: NoOwner, Position: mgl64.Vec2{3, 4}})
	if e.ID() == 0 {
		t.Fatal("spawn did not assign an id")
	}
	if _, ok := layer.Entity(e.ID()); ok {
		t.Fatal("entity visible before the layer advanced")
	}
	tr.Update(time.Millisecond * 50)
	got, ok := layer.Entity(e.ID())
	if !ok || got != e {
		t.Fatal("entity not visible after advance")
	}
	if global, ok := tr.Entity(e.ID()); !ok || global != e {
		t.Fatal("terrain-wide lookup failed")
	}
	if e.Layer() != 0 || e.Element() != "crate" {
		t.Fatalf("entity metadata wrong: layer=%d element=%q", e.Layer(), e.Element())
	}
}

func TestKillDeferredUntilAdvance(t *testing.T) {
	tr := New(testMap())
	layer, _ := tr.Layer(0)
	e := layer.Spawn(Spawn{Element: "crate", Owner: NoOwner})
	tr.Update(time.Millisecond * 50)
	layer.Kill(e.ID())
	if _, ok := layer.Entity(e.ID()); !ok {
		t.Fatal("entity removed before the layer advanced")
	}
	tr.Update(time.Millisecond * 50)
	if _, ok := layer.Entity(e.ID()); ok {
		t.Fatal("entity still live after advance")
	}
	if _, ok := tr.Entity(e.ID()); ok {
		t.Fatal("terrain-wide lookup still resolves a killed entity")
	}
	// Killing an unknown id is a no-op.
	layer.Kill(9999)
	tr.Update(time.Millisecond * 50)
}

func TestKillDropsQueuedSpawn(t *testing.T) {
	tr := New(testMap())
	layer, _ := tr.Layer(0)
	e := layer.Spawn(Spawn{Element: "crate", Owner: NoOwner})
	layer.Kill(e.ID())
	tr.Update(time.Millisecond * 50)
	if layer.Len() != 0 {
		t.Fatalf("want 0 live entities, got %d", layer.Len())
	}
	if _, ok := tr.Entity(e.ID()); ok {
		t.Fatal("killed queued spawn became live")
	}
}

func TestKillOwnedCoversQueuedAndLive(t *testing.T) {
	tr := New(testMap())
	layer, _ := tr.Layer(0)
	live := layer.Spawn(Spawn{Element: "soldier", Owner: 2})
	other := layer.Spawn(Spawn{Element: "soldier", Owner: 5})
	tr.Update(time.Millisecond * 50)
	queued := layer.Spawn(Spawn{Element: "soldier", Owner: 2})

	layer.KillOwned(2)
	tr.Update(time.Millisecond * 50)
	if _, ok := layer.Entity(live.ID()); ok {
		t.Fatal("live owned entity survived")
	}
	if _, ok := layer.Entity(queued.ID()); ok {
		t.Fatal("queued owned spawn survived")
	}
	if _, ok := layer.Entity(other.ID()); !ok {
		t.Fatal("another player's entity was removed")
	}
}

func TestForEachEntityStableDuringMutation(t *testing.T) {
	tr := New(testMap())
	layer, _ := tr.Layer(0)
	a := layer.Spawn(Spawn{Element: "a", Owner: NoOwner})
	b := layer.Spawn(Spawn{Element: "b", Owner: NoOwner})
	tr.Update(time.Millisecond * 50)

	var visited []property.EntityID
	layer.ForEachEntity(func(e *Entity) {
		visited = append(visited, e.ID())
		layer.Kill(a.ID())
		layer.Spawn(Spawn{Element: "c", Owner: NoOwner})
	})
	if len(visited) != 2 || visited[0] != a.ID() || visited[1] != b.ID() {
		t.Fatalf("iteration not stable: %v", visited)
	}
	tr.Update(time.Millisecond * 50)
	// a killed twice, two c spawned.
	if layer.Len() != 3 {
		t.Fatalf("want 3 live entities after advance, got %d", layer.Len())
	}
}

func TestUpdateIntegratesVelocity(t *testing.T) {
	tr := New(testMap())
	layer, _ := tr.Layer(1)
	e := layer.Spawn(Spawn{Element: "ball", Owner: NoOwner, Position: mgl64.Vec2{1, 1}})
	tr.Update(time.Millisecond * 50)
	e.SetVelocity(mgl64.Vec2{10, -4})
	tr.Update(time.Millisecond * 500)
	want := mgl64.Vec2{6, -1}
	if !e.Position().ApproxEqual(want) {
		t.Fatalf("want position %v, got %v", want, e.Position())
	}
}

func TestEntityIDsUniqueAcrossLayers(t *testing.T) {
	tr := New(testMap())
	l0, _ := tr.Layer(0)
	l1, _ := tr.Layer(1)
	a := l0.Spawn(Spawn{Element: "a", Owner: NoOwner})
	b := l1.Spawn(Spawn{Element: "b", Owner: NoOwner})
	if a.ID() == b.ID() {
		t.Fatalf("duplicate entity id %d across layers", a.ID())
	}
}

func TestUnknownLayerLookup(t *testing.T) {
	tr := New(testMap())
	if _, ok := tr.Layer(7); ok {
		t.Fatal("lookup of unknown layer succeeded")
	}
}
