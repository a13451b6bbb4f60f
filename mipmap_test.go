package vkdraw

import "testing"

func TestPlanMipChainSingleLevel(t *testing.T) {
	if steps := planMipChain(256, 256, 1); len(steps) != 0 {
		t.Errorf("single-level chain must have zero blits, got %d", len(steps))
	}
	if steps := planMipChain(256, 256, 0); len(steps) != 0 {
		t.Errorf("zero-level chain must have zero blits, got %d", len(steps))
	}
}

func TestPlanMipChainHalving(t *testing.T) {
	steps := planMipChain(8, 8, 4)
	if len(steps) != 3 {
		t.Fatalf("expected 3 blits, got %d", len(steps))
	}

	wantDims := [][2]int32{{4, 4}, {2, 2}, {1, 1}}
	for i, step := range steps {
		if step.srcLevel != uint32(i) || step.dstLevel != uint32(i+1) {
			t.Errorf("step %d levels: %d->%d", i, step.srcLevel, step.dstLevel)
		}
		if step.dstWidth != wantDims[i][0] || step.dstHeight != wantDims[i][1] {
			t.Errorf("step %d dst: %dx%d", i, step.dstWidth, step.dstHeight)
		}
	}
}

func TestPlanMipChainClampsAtOne(t *testing.T) {
	steps := planMipChain(8, 2, 4)
	last := steps[len(steps)-1]
	if last.dstWidth != 1 || last.dstHeight != 1 {
		t.Errorf("final level must clamp to 1x1, got %dx%d", last.dstWidth, last.dstHeight)
	}
	// Height hits 1 first and must stay there.
	if steps[1].dstHeight != 1 {
		t.Errorf("height must clamp at 1, got %d", steps[1].dstHeight)
	}
}

func TestMipDim(t *testing.T) {
	if mipDim(256, 0) != 256 || mipDim(256, 4) != 16 {
		t.Error("plain shifts wrong")
	}
	if mipDim(4, 10) != 1 {
		t.Error("over-shifted dimension must clamp to 1")
	}
}
