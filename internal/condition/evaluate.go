package condition

/*
 * Evaluation is a fold over the expression tree. A compound folds its
 * clauses left to right, short-circuiting: an 'and' clause is skipped when
 * the accumulator is already false, an 'or' clause when it is already
 * true. An inverted expression negates its compound's result.
 *
 * Function results are cached per invocation fingerprint; a hit
 * short-circuits all I/O. Errors propagate immediately and never populate
 * the cache.
 */

// Eval evaluates the expression against the state.
func (e *Expression) Eval(s *State) (bool, error) {
	result, err := e.evalCompound(s)
	if err != nil {
		return false, err
	}
	if e.Inverted {
		return !result, nil
	}
	return result, nil
}

func (e *Expression) evalCompound(s *State) (bool, error) {
	if len(e.Clauses) == 0 {
		// The parser never produces an empty compound.
		return false, nil
	}

	acc, err := e.Clauses[0].Clause.eval(s)
	if err != nil {
		return false, err
	}

	for _, oc := range e.Clauses[1:] {
		switch oc.Op {
		case And:
			if !acc {
				continue
			}
		case Or:
			if acc {
				continue
			}
		}
		v, err := oc.Clause.eval(s)
		if err != nil {
			return false, err
		}
		acc = v
	}
	return acc, nil
}

func (c Clause) eval(s *State) (bool, error) {
	if c.Expression != nil {
		return c.Expression.Eval(s)
	}
	return evalCached(s, c.Function)
}

func evalCached(s *State, f *Function) (bool, error) {
	fp := f.Fingerprint()
	if v, ok := s.cachedCondition(fp); ok {
		return v, nil
	}

	v, err := f.eval(s)
	if err != nil {
		return false, err
	}
	s.storeCondition(fp, v)
	return v, nil
}
