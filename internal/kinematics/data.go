package kinematics

import "math"

// Geometry of the Reachy Mini head platform, exported from the robot's
// calibration data and URDF. Units are meters and radians.

const (
	headZOffset    = 0.177
	motorArmLength = 0.04
)

// xl330InHeadFrame is the head connector servo pose in the head frame
// (row-major 4x4, only the rotation part is used).
var xl330InHeadFrame = [16]float64{
	0.4822, -0.7068, -0.5177, 0.0206,
	0.1766, -0.5003, 0.8476, -0.0218,
	-0.8581, -0.5001, -0.1164, 0.0,
	0.0, 0.0, 0.0, 1.0,
}

// passiveOrientationOffsets holds per-joint orientation corrections
// (xyz Euler angles, scipy convention). Index 0-5 are the rod ball joints,
// index 6 is the head connector.
var passiveOrientationOffsets = [7][3]float64{
	{-0.13754, -0.0882156, 2.10349},
	{-math.Pi, 5.37396e-16, -math.Pi},
	{0.373569, 0.0882156, -1.0381},
	{-0.0860846, 0.0882156, 1.0381},
	{0.123977, 0.0882156, -1.0381},
	{3.0613, 0.0882156, 1.0381},
	{math.Pi, 2.10388e-17, 4.15523e-17},
}

// rodDirections holds each rod's direction in its passive joint frame.
var rodDirections = [6][3]float64{
	{1.0, 0.0, 0.0},
	{0.50606941, -0.85796418, -0.08826792},
	{-1.0, 0.0, 0.0},
	{-1.0, 0.0, 0.0},
	{-1.0, 0.0, 0.0},
	{-1.0, 0.0, 0.0},
}

// motorFrame describes one Stewart motor: where its rod attaches to the
// platform (platform frame) and the motor pose in the world frame.
type motorFrame struct {
	branch     [3]float64
	worldMotor [16]float64
}

var motorFrames = [6]motorFrame{
	{
		branch: [3]float64{0.020648178337122566, 0.021763723638894568, 1.0345743467476964e-07},
		worldMotor: [16]float64{
			0.8660247915798899, 0.0000044901959360, -0.5000010603477224, 0.0269905781109381,
			-0.5000010603626028, 0.0000031810770988, -0.8660247915770969, 0.0267489144601032,
			-0.0000022980790772, 0.9999999999848599, 0.0000049999943606, 0.0766332540902687,
			0.0, 0.0, 0.0, 1.0,
		},
	},
	{
		branch: [3]float64{0.00852381571767217, 0.028763668526131346, 1.183437210727778e-07},
		worldMotor: [16]float64{
			-0.8660211183436273, -0.0000044902196459, -0.5000074225075980, 0.0096699703080478,
			0.5000074225224782, -0.0000031810634097, -0.8660211183408341, 0.0367490037948058,
			0.0000022980697230, -0.9999999999848597, 0.0000050000112432, 0.0766333000521544,
			0.0, 0.0, 0.0, 1.0,
		},
	},
	{
		branch: [3]float64{-0.029172011376922807, 0.0069999429399361995, 4.0290270064691214e-08},
		worldMotor: [16]float64{
			0.0000063267948970, -0.0000010196153098, 0.9999999999794665, -0.0366606982562266,
			0.9999999999799865, 0.0000000000135060, -0.0000063267948965, 0.0100001160862987,
			-0.0000000000070551, 0.9999999999994809, 0.0000010196153103, 0.0766334229944826,
			0.0, 0.0, 0.0, 1.0,
		},
	},
	{
		branch: [3]float64{-0.029172040355214434, -0.0069999960097160766, -3.1608172912367394e-08},
		worldMotor: [16]float64{
			-0.0000036732050704, 0.0000010196153103, 0.9999999999927344, -0.0366607717202358,
			-0.9999999999932538, -0.0000000000036776, -0.0000036732050700, -0.0099998653384376,
			-0.0000000000000677, -0.9999999999994809, 0.0000010196153103, 0.0766334229944823,
			0.0, 0.0, 0.0, 1.0,
		},
	},
	{
		branch: [3]float64{0.008523809101930114, -0.028763713010385224, -1.4344916837716326e-07},
		worldMotor: [16]float64{
			-0.8660284647694136, 0.0000044901728834, -0.4999946981608615, 0.0096697448698383,
			-0.4999946981757425, -0.0000031811099295, 0.8660284647666202, -0.0367490491228644,
			0.0000022980794298, 0.9999999999848597, 0.0000049999943840, 0.0766333000520353,
			0.0, 0.0, 0.0, 1.0,
		},
	},
	{
		branch: [3]float64{0.020648186722822436, -0.02176369606185343, -8.957920105689965e-08},
		worldMotor: [16]float64{
			0.8660247915798903, -0.0000044901962204, -0.5000010603477218, 0.0269903370664035,
			0.5000010603626028, 0.0000031810964559, 0.8660247915770964, -0.0267491384573748,
			-0.0000022980696448, -0.9999999999848597, 0.0000050000112666, 0.0766332540903862,
			0.0, 0.0, 0.0, 1.0,
		},
	},
}
