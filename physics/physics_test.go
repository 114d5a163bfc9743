package physics

import (
	"math"
	"testing"
)

func TestMovePaddles_Clamp(t *testing.T) {
	st := NewState()
	st.Paddle1Y = PaddleHalfHeight

	for i := 0; i < 100; i++ {
		MovePaddles(&st, Input{Up: true}, Input{Down: true})
	}

	if st.Paddle1Y != PaddleHalfHeight {
		t.Errorf("Expected left paddle clamped at %v, got %v", PaddleHalfHeight, st.Paddle1Y)
	}
	if st.Paddle2Y != 1-PaddleHalfHeight {
		t.Errorf("Expected right paddle clamped at %v, got %v", 1-PaddleHalfHeight, st.Paddle2Y)
	}
}

func TestMovePaddles_BothKeysCancel(t *testing.T) {
	st := NewState()
	MovePaddles(&st, Input{Up: true, Down: true}, Input{})

	if st.Paddle1Y != 0.5 {
		t.Errorf("Expected paddle to stay at 0.5, got %v", st.Paddle1Y)
	}
}

func TestMoveBall_WallBounce(t *testing.T) {
	st := NewState()
	st.BallX = 0.5
	st.BallY = 0.005
	st.Speed = 0.01
	st.Angle = -math.Pi / 2 // straight up

	MoveBall(&st)

	if st.BallY != 0 {
		t.Errorf("Expected ball clamped to the top wall, got %v", st.BallY)
	}
	if math.Sin(st.Angle) <= 0 {
		t.Error("Expected vertical component mirrored downward after wall contact")
	}
}

func TestMoveBall_PaddleReflection(t *testing.T) {
	st := NewState()
	st.Paddle1Y = 0.5
	st.BallX = Paddle1X + PaddleHalfWidth + 0.001
	st.BallY = 0.5
	st.Speed = InitialBallSpeed
	st.Angle = math.Pi // straight left

	scored := MoveBall(&st)

	if scored != 0 {
		t.Fatalf("Expected a paddle hit, got a score for side %d", scored)
	}
	if math.Cos(st.Angle) <= 0 {
		t.Error("Expected ball heading right after left-paddle contact")
	}
	if st.Speed <= InitialBallSpeed {
		t.Errorf("Expected speed to increase on paddle contact, got %v", st.Speed)
	}
}

func TestMoveBall_EdgeHitSteepest(t *testing.T) {
	st := NewState()
	st.Paddle1Y = 0.5
	st.BallX = Paddle1X + PaddleHalfWidth + 0.001
	st.BallY = 0.5 + PaddleHalfHeight // bottom edge of the contact box
	st.Speed = InitialBallSpeed
	st.Angle = math.Pi

	MoveBall(&st)

	if math.Abs(st.Angle-MaxBounceAngle) > 1e-9 {
		t.Errorf("Expected edge hit to leave at MaxBounceAngle, got %v", st.Angle)
	}
}

func TestMoveBall_SpeedCap(t *testing.T) {
	st := NewState()
	st.BallX = Paddle1X + PaddleHalfWidth + 0.001
	st.BallY = 0.5
	st.Speed = MaxBallSpeed
	st.Angle = math.Pi

	MoveBall(&st)

	if st.Speed > MaxBallSpeed {
		t.Errorf("Speed exceeded cap: %v", st.Speed)
	}
}

func TestMoveBall_RightBoundaryScoresTeam1(t *testing.T) {
	st := NewState()
	st.BallX = 0.999
	st.BallY = 0.2 // away from the right paddle
	st.Paddle2Y = 0.8
	st.Speed = 0.01
	st.Angle = 0 // straight right

	scored := MoveBall(&st)

	if scored != 1 {
		t.Fatalf("Expected side 1 to score, got %d", scored)
	}
	if st.Score1 != 1 || st.Score2 != 0 {
		t.Errorf("Expected score 1-0, got %d-%d", st.Score1, st.Score2)
	}
	if st.BallX != 0.5 || st.BallY != 0.5 || st.Paddle1Y != 0.5 || st.Paddle2Y != 0.5 {
		t.Error("Expected ball and paddles reset to center after a score")
	}
	if st.Speed != InitialBallSpeed {
		t.Errorf("Expected serve speed reset to %v, got %v", InitialBallSpeed, st.Speed)
	}
}

func TestMoveBall_LeftBoundaryScoresTeam2(t *testing.T) {
	st := NewState()
	st.BallX = 0.001
	st.BallY = 0.9
	st.Paddle1Y = 0.3
	st.Speed = 0.01
	st.Angle = math.Pi

	if scored := MoveBall(&st); scored != 2 {
		t.Fatalf("Expected side 2 to score, got %d", scored)
	}
	if st.Score2 != 1 {
		t.Errorf("Expected score2 = 1, got %d", st.Score2)
	}
}

func TestResetRound_ServeAngleBounded(t *testing.T) {
	for i := 0; i < 200; i++ {
		st := NewState()
		ResetRound(&st)

		if st.Speed != InitialBallSpeed {
			t.Fatalf("Expected serve speed %v, got %v", InitialBallSpeed, st.Speed)
		}
		// The vertical component must stay within the serve cone.
		if math.Abs(math.Sin(st.Angle)) > math.Sin(MaxServeAngle)+1e-9 {
			t.Fatalf("Serve angle %v outside the serve cone", st.Angle)
		}
	}
}

func TestWinner(t *testing.T) {
	st := NewState()
	if Winner(st) != 0 {
		t.Error("Fresh state should have no winner")
	}

	st.Score1 = WinScore
	if Winner(st) != 1 {
		t.Error("Side 1 at the win threshold should win")
	}

	st = NewState()
	st.Score2 = WinScore
	if Winner(st) != 2 {
		t.Error("Side 2 at the win threshold should win")
	}
}

func TestScores_OnlyIncreaseByOne(t *testing.T) {
	st := NewState()
	ResetRound(&st)

	prev1, prev2 := 0, 0
	for tick := 0; tick < 100000; tick++ {
		scored := MoveBall(&st)
		d1, d2 := st.Score1-prev1, st.Score2-prev2
		if d1 < 0 || d2 < 0 || d1 > 1 || d2 > 1 || (scored == 0 && d1+d2 != 0) {
			t.Fatalf("Score moved illegally at tick %d: %d-%d -> %d-%d", tick, prev1, prev2, st.Score1, st.Score2)
		}
		prev1, prev2 = st.Score1, st.Score2
	}
}
