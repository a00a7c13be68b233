package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sizes of the solver's inputs and output.
const (
	NumHeadJoints    = 7  // body yaw + six stewart motors
	PoseSize         = 16 // 4x4 row-major transform
	NumPassiveJoints = 21 // seven ball joints, three angles each
)

// Solver computes the passive ball joint angles of the head platform from
// the actuated joint positions and the head pose. The daemon's analytical
// kinematics stop at the actuated joints; without the passive angles the
// rendered rods detach from the platform.
type Solver struct {
	motors      [6]motor
	corrections [7]*mat.Dense
	headServo   *mat.Dense
}

type motor struct {
	branch r3.Vec
	rot    *mat.Dense
	trans  r3.Vec
	rodDir r3.Vec
}

// NewSolver precomputes the constant motor frames and correction rotations.
func NewSolver() *Solver {
	s := &Solver{headServo: rotationPart(xl330InHeadFrame[:])}
	for i, f := range motorFrames {
		s.motors[i] = motor{
			branch: r3.Vec{X: f.branch[0], Y: f.branch[1], Z: f.branch[2]},
			rot:    rotationPart(f.worldMotor[:]),
			trans:  translationPart(f.worldMotor[:]),
			rodDir: r3.Vec{X: rodDirections[i][0], Y: rodDirections[i][1], Z: rodDirections[i][2]},
		}
	}
	for i, off := range passiveOrientationOffsets {
		s.corrections[i] = rotationFromEulerXYZ(off[0], off[1], off[2])
	}
	return s
}

// PassiveJoints solves the 21 passive angles for the given actuated joints
// (body yaw followed by the six stewart motors) and head pose (4x4 row-major).
// Angles come out as [j1_x, j1_y, j1_z, ..., j7_x, j7_y, j7_z].
func (s *Solver) PassiveJoints(headJoints, headPose []float64) ([]float64, error) {
	if len(headJoints) != NumHeadJoints {
		return nil, fmt.Errorf("head joints: want %d values, got %d", NumHeadJoints, len(headJoints))
	}
	if len(headPose) != PoseSize {
		return nil, fmt.Errorf("head pose: want %d values, got %d", PoseSize, len(headPose))
	}

	bodyYaw := headJoints[0]

	poseTrans := translationPart(headPose)
	poseTrans.Z += headZOffset

	// Undo the body yaw so platform math happens in the body frame.
	rzInv := rotationZ(-bodyYaw)
	var poseRot mat.Dense
	poseRot.Mul(rzInv, rotationPart(headPose))
	poseTrans = mulVec(rzInv, poseTrans)

	out := make([]float64, NumPassiveJoints)

	var lastServoBranch, lastWorldServo *mat.Dense

	for i := range s.motors {
		m := &s.motors[i]
		angle := headJoints[i+1]

		branchWorld := r3.Add(mulVec(&poseRot, m.branch), poseTrans)

		// Servo arm tip in the world frame.
		rServo := rotationZ(angle)
		armLocal := mulVec(rServo, r3.Vec{X: motorArmLength})
		armWorld := r3.Add(mulVec(m.rot, armLocal), m.trans)

		var motorServo, worldServo mat.Dense
		motorServo.Mul(m.rot, rServo)
		worldServo.Mul(&motorServo, s.corrections[i])

		// Rod vector from the servo arm tip to the platform branch,
		// expressed in the servo frame.
		rodWorld := r3.Sub(branchWorld, armWorld)
		rodServo := mulVecT(&worldServo, rodWorld)

		if r3.Norm(rodServo) == 0 {
			return nil, fmt.Errorf("motor %d: rod collapsed to zero length", i+1)
		}

		servoBranch := alignVectors(m.rodDir, r3.Unit(rodServo))
		x, y, z := eulerFromRotationXYZ(servoBranch)
		out[i*3], out[i*3+1], out[i*3+2] = x, y, z

		if i == 5 {
			lastServoBranch = servoBranch
			lastWorldServo = &worldServo
		}
	}

	// The seventh joint connects the head servo; its angles are the rotation
	// left between the last rod frame and the servo pose on the head.
	var headTarget mat.Dense
	headTarget.Mul(&poseRot, s.headServo)

	var rodFrame, rodCurrent mat.Dense
	rodFrame.Mul(lastWorldServo, lastServoBranch)
	rodCurrent.Mul(&rodFrame, s.corrections[6])

	var dof mat.Dense
	dof.Mul(rodCurrent.T(), &headTarget)
	x, y, z := eulerFromRotationXYZ(&dof)
	out[18], out[19], out[20] = x, y, z

	return out, nil
}

// rotationPart extracts the 3x3 rotation of a row-major 4x4 transform.
func rotationPart(t []float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		t[0], t[1], t[2],
		t[4], t[5], t[6],
		t[8], t[9], t[10],
	})
}

// translationPart extracts the translation of a row-major 4x4 transform.
func translationPart(t []float64) r3.Vec {
	return r3.Vec{X: t[3], Y: t[7], Z: t[11]}
}

func rotationZ(angle float64) *mat.Dense {
	c, s := math.Cos(angle), math.Sin(angle)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

// rotationFromEulerXYZ builds a rotation from xyz Euler angles, matching
// scipy's R.from_euler("xyz", ...) (matrix order Rz * Ry * Rx).
func rotationFromEulerXYZ(x, y, z float64) *mat.Dense {
	cx, sx := math.Cos(x), math.Sin(x)
	cy, sy := math.Cos(y), math.Sin(y)
	cz, sz := math.Cos(z), math.Sin(z)

	return mat.NewDense(3, 3, []float64{
		cy * cz, cz*sx*sy - cx*sz, cx*cz*sy + sx*sz,
		cy * sz, cx*cz + sx*sy*sz, cx*sy*sz - cz*sx,
		-sy, cy * sx, cx * cy,
	})
}

// eulerFromRotationXYZ extracts XYZ Euler angles from a rotation, matching
// scipy's R.as_euler("XYZ").
func eulerFromRotationXYZ(r mat.Matrix) (x, y, z float64) {
	sy := r.At(0, 2)

	if math.Abs(sy) < 0.99999 {
		x = math.Atan2(-r.At(1, 2), r.At(2, 2))
		y = math.Asin(sy)
		z = math.Atan2(-r.At(0, 1), r.At(0, 0))
		return x, y, z
	}

	// Gimbal lock: pitch pinned to +-pi/2, roll carries the remainder.
	x = math.Atan2(r.At(2, 1), r.At(1, 1))
	y = math.Pi / 2
	if sy < 0 {
		y = -math.Pi / 2
	}
	return x, y, 0
}

// alignVectors returns the rotation taking from onto to.
func alignVectors(from, to r3.Vec) *mat.Dense {
	from = r3.Unit(from)
	to = r3.Unit(to)
	dot := r3.Dot(from, to)

	if dot > 0.99999 {
		return eye3()
	}

	if dot < -0.99999 {
		// Opposite vectors: rotate pi around any perpendicular axis.
		perp := r3.Cross(r3.Vec{X: 1}, from)
		if r3.Norm(perp) < 0.001 {
			perp = r3.Cross(r3.Vec{Y: 1}, from)
		}
		k := skew(r3.Unit(perp))
		var kk mat.Dense
		kk.Mul(k, k)
		kk.Scale(2, &kk)
		out := eye3()
		out.Add(out, &kk)
		return out
	}

	// Rodrigues' rotation formula.
	cross := r3.Cross(from, to)
	sin := r3.Norm(cross)
	k := skew(cross)
	var kk mat.Dense
	kk.Mul(k, k)
	kk.Scale((1-dot)/(sin*sin), &kk)

	out := eye3()
	out.Add(out, k)
	out.Add(out, &kk)
	return out
}

func skew(v r3.Vec) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// mulVec applies a 3x3 rotation to a vector.
func mulVec(m mat.Matrix, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

// mulVecT applies the transpose of a 3x3 rotation, its inverse.
func mulVecT(m mat.Matrix, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*v.X + m.At(1, 0)*v.Y + m.At(2, 0)*v.Z,
		Y: m.At(0, 1)*v.X + m.At(1, 1)*v.Y + m.At(2, 1)*v.Z,
		Z: m.At(0, 2)*v.X + m.At(1, 2)*v.Y + m.At(2, 2)*v.Z,
	}
}
